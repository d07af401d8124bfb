package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// BotAccountSize is the encoded size of a bot record, 8-byte account
// discriminator included.
const BotAccountSize = 8 + 32 + 1 + 1 + 1 + 8 + 8 + 8

var botDiscriminator = Discriminator("account:Bot")

// Discriminator returns the first 8 bytes of sha256(preimage). Account
// records are tagged with Discriminator("account:<Type>") and instructions
// with Discriminator("global:<name>").
func Discriminator(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// Bot is the persisted state of one trading bot.
//
// StrategyType is stored verbatim and nothing dispatches on it.
// SuccessfulTrades and TotalProfit are part of the layout but no instruction
// writes them.
type Bot struct {
	Owner            Identity
	RiskPercentage   uint8
	StrategyType     uint8
	IsActive         bool
	TotalTrades      uint64
	SuccessfulTrades uint64
	TotalProfit      int64
}

// State is the lifecycle state of a bot.
type State string

const (
	StateInactive State = "inactive"
	StateActive   State = "active"
)

// State returns the lifecycle state derived from IsActive.
func (b *Bot) State() State {
	if b.IsActive {
		return StateActive
	}
	return StateInactive
}

// MarshalBinary encodes the bot into its fixed little-endian layout.
func (b *Bot) MarshalBinary() ([]byte, error) {
	buf := make([]byte, BotAccountSize)
	copy(buf[0:8], botDiscriminator[:])
	copy(buf[8:40], b.Owner[:])
	buf[40] = b.RiskPercentage
	buf[41] = b.StrategyType
	if b.IsActive {
		buf[42] = 1
	}
	binary.LittleEndian.PutUint64(buf[43:51], b.TotalTrades)
	binary.LittleEndian.PutUint64(buf[51:59], b.SuccessfulTrades)
	binary.LittleEndian.PutUint64(buf[59:67], uint64(b.TotalProfit))
	return buf, nil
}

// UnmarshalBinary decodes a bot record, checking length, discriminator and
// the boolean byte.
func (b *Bot) UnmarshalBinary(data []byte) error {
	if len(data) < BotAccountSize {
		return fmt.Errorf("%w: bot record has %d bytes, want %d", ErrInvalidAccountData, len(data), BotAccountSize)
	}
	if [8]byte(data[0:8]) != botDiscriminator {
		return fmt.Errorf("%w: discriminator mismatch", ErrInvalidAccountData)
	}
	active := data[42]
	if active > 1 {
		return fmt.Errorf("%w: is_active byte %d", ErrInvalidAccountData, active)
	}

	copy(b.Owner[:], data[8:40])
	b.RiskPercentage = data[40]
	b.StrategyType = data[41]
	b.IsActive = active == 1
	b.TotalTrades = binary.LittleEndian.Uint64(data[43:51])
	b.SuccessfulTrades = binary.LittleEndian.Uint64(data[51:59])
	b.TotalProfit = int64(binary.LittleEndian.Uint64(data[59:67]))
	return nil
}
