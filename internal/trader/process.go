package trader

import (
	"context"
	"fmt"

	"bot-ledger-go/internal/ledger"
	"bot-ledger-go/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Receipt describes a committed transaction.
type Receipt struct {
	ID          uuid.UUID
	Instruction string
	BotAddress  ledger.Identity
	Bot         *ledger.Bot
	TradeAmount uint64
	Transferred bool
}

// Process verifies, decodes and applies a signed transaction. The
// instruction and its journal entry commit together; a transaction ID that
// was already committed is rejected.
func (p *Processor) Process(ctx context.Context, tx *Transaction) (*Receipt, error) {
	ix, err := p.admit(tx)
	if err != nil {
		return nil, err
	}

	out, err := p.atomically(ctx, ix.Name(), tx.Bot, func(acc ledger.Accounts) (*outcome, error) {
		seen, err := acc.HasInstruction(ctx, tx.ID.String())
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.ID)
		}

		out, err := p.dispatch(ctx, acc, tx, ix)
		if err != nil {
			return nil, err
		}
		if err := acc.RecordInstruction(ctx, journalEntry(tx, ix, out)); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		ID:          tx.ID,
		Instruction: ix.Name(),
		BotAddress:  tx.Bot,
		Bot:         out.bot,
	}
	if out.trade != nil {
		receipt.TradeAmount = out.trade.TradeAmount
		receipt.Transferred = out.trade.Transferred
	}
	return receipt, nil
}

// admit checks the signature and decodes the instruction.
func (p *Processor) admit(tx *Transaction) (Instruction, error) {
	err := tx.Verify()
	var ix Instruction
	if err == nil {
		ix, err = DecodeInstruction(tx.Data)
	}
	if err != nil {
		p.metrics.observe("invalid", err)
		p.logger.Warn("Transaction refused",
			zap.Stringer("id", tx.ID),
			zap.Stringer("signer", tx.Signer),
			zap.Error(err))
		return nil, err
	}
	return ix, nil
}

func (p *Processor) dispatch(ctx context.Context, acc ledger.Accounts, tx *Transaction, ix Instruction) (*outcome, error) {
	switch ix := ix.(type) {
	case InitializeBot:
		if tx.Bot != p.BotAddress(tx.Signer) {
			return nil, ErrBotAddressMismatch
		}
		return p.createBot(ctx, acc, tx.Bot, tx.Signer, ix.RiskPercentage, ix.StrategyType)
	case ActivateBot:
		return p.setActive(ctx, acc, tx.Bot, tx.Signer, true)
	case DeactivateBot:
		return p.setActive(ctx, acc, tx.Bot, tx.Signer, false)
	case ExecuteTrade:
		return p.executeTrade(ctx, acc, tx.Bot, tx.Signer, tx.Market, ix.Amount, ix.IsBuy)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownInstruction, ix)
	}
}

func journalEntry(tx *Transaction, ix Instruction, out *outcome) *models.Instruction {
	rec := &models.Instruction{
		ID:     tx.ID.String(),
		Kind:   ix.Name(),
		Signer: tx.Signer.String(),
		Bot:    tx.Bot.String(),
	}
	if trade, ok := ix.(ExecuteTrade); ok {
		rec.Market = tx.Market.String()
		rec.Amount = models.Uint64(trade.Amount)
		rec.IsBuy = trade.IsBuy
		rec.TradeAmount = models.Uint64(out.trade.TradeAmount)
	}
	return rec
}
