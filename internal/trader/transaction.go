package trader

import (
	"crypto/ed25519"
	"fmt"

	"bot-ledger-go/internal/ledger"
	"github.com/google/uuid"
)

// Transaction is a signed envelope carrying one instruction.
//
// Bot names the bot record the instruction acts on. Market is the
// counterparty of execute_trade and is ignored by the other instructions.
// ID is a random nonce; a node applies each ID at most once.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	Signer    ledger.Identity `json:"signer"`
	Bot       ledger.Identity `json:"bot"`
	Market    ledger.Identity `json:"market"`
	Data      []byte          `json:"data"`
	Signature []byte          `json:"signature"`
}

// NewTransaction builds an unsigned transaction with a fresh ID.
func NewTransaction(signer, bot, market ledger.Identity, ix Instruction) (*Transaction, error) {
	data, err := ix.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", ix.Name(), err)
	}
	return &Transaction{
		ID:     uuid.New(),
		Signer: signer,
		Bot:    bot,
		Market: market,
		Data:   data,
	}, nil
}

// Message returns the bytes covered by the signature.
func (tx *Transaction) Message() []byte {
	msg := make([]byte, 0, 16+3*ledger.IdentitySize+len(tx.Data))
	msg = append(msg, tx.ID[:]...)
	msg = append(msg, tx.Signer[:]...)
	msg = append(msg, tx.Bot[:]...)
	msg = append(msg, tx.Market[:]...)
	return append(msg, tx.Data...)
}

// Sign signs the transaction with the signer's private key.
func (tx *Transaction) Sign(key ed25519.PrivateKey) error {
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok || !pub.Equal(tx.Signer.PublicKey()) {
		return fmt.Errorf("key does not belong to signer %s", tx.Signer)
	}
	tx.Signature = ed25519.Sign(key, tx.Message())
	return nil
}

// Verify checks the signature against the signer identity.
func (tx *Transaction) Verify() error {
	if len(tx.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature has %d bytes", ErrInvalidSignature, len(tx.Signature))
	}
	if !ed25519.Verify(tx.Signer.PublicKey(), tx.Message(), tx.Signature) {
		return ErrInvalidSignature
	}
	return nil
}
