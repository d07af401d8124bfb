package trader

import (
	"encoding/binary"
	"fmt"

	"bot-ledger-go/internal/ledger"
)

// Instruction names.
const (
	InstructionInitializeBot = "initialize_bot"
	InstructionActivateBot   = "activate_bot"
	InstructionDeactivateBot = "deactivate_bot"
	InstructionExecuteTrade  = "execute_trade"
)

var (
	initializeBotTag = ledger.Discriminator("global:" + InstructionInitializeBot)
	activateBotTag   = ledger.Discriminator("global:" + InstructionActivateBot)
	deactivateBotTag = ledger.Discriminator("global:" + InstructionDeactivateBot)
	executeTradeTag  = ledger.Discriminator("global:" + InstructionExecuteTrade)
)

// Instruction is one decoded bot program instruction.
type Instruction interface {
	Name() string
	MarshalBinary() ([]byte, error)
}

// InitializeBot creates the signer's bot record.
type InitializeBot struct {
	RiskPercentage uint8
	StrategyType   uint8
}

// ActivateBot moves a bot from inactive to active.
type ActivateBot struct{}

// DeactivateBot moves a bot from active to inactive.
type DeactivateBot struct{}

// ExecuteTrade sizes and executes one trade.
type ExecuteTrade struct {
	Amount uint64
	IsBuy  bool
}

func (InitializeBot) Name() string { return InstructionInitializeBot }
func (ActivateBot) Name() string   { return InstructionActivateBot }
func (DeactivateBot) Name() string { return InstructionDeactivateBot }
func (ExecuteTrade) Name() string  { return InstructionExecuteTrade }

func (ix InitializeBot) MarshalBinary() ([]byte, error) {
	buf := append([]byte(nil), initializeBotTag[:]...)
	return append(buf, ix.RiskPercentage, ix.StrategyType), nil
}

func (ActivateBot) MarshalBinary() ([]byte, error) {
	return append([]byte(nil), activateBotTag[:]...), nil
}

func (DeactivateBot) MarshalBinary() ([]byte, error) {
	return append([]byte(nil), deactivateBotTag[:]...), nil
}

func (ix ExecuteTrade) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+8+1)
	copy(buf, executeTradeTag[:])
	binary.LittleEndian.PutUint64(buf[8:16], ix.Amount)
	if ix.IsBuy {
		buf[16] = 1
	}
	return buf, nil
}

// DecodeInstruction parses instruction data: an 8-byte discriminator
// followed by little-endian arguments. Trailing bytes are rejected.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidInstruction, len(data))
	}
	tag, args := [8]byte(data[:8]), data[8:]

	switch tag {
	case initializeBotTag:
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: %s takes 2 bytes of arguments, got %d", ErrInvalidInstruction, InstructionInitializeBot, len(args))
		}
		return InitializeBot{RiskPercentage: args[0], StrategyType: args[1]}, nil
	case activateBotTag:
		if len(args) != 0 {
			return nil, fmt.Errorf("%w: %s takes no arguments", ErrInvalidInstruction, InstructionActivateBot)
		}
		return ActivateBot{}, nil
	case deactivateBotTag:
		if len(args) != 0 {
			return nil, fmt.Errorf("%w: %s takes no arguments", ErrInvalidInstruction, InstructionDeactivateBot)
		}
		return DeactivateBot{}, nil
	case executeTradeTag:
		if len(args) != 9 {
			return nil, fmt.Errorf("%w: %s takes 9 bytes of arguments, got %d", ErrInvalidInstruction, InstructionExecuteTrade, len(args))
		}
		if args[8] > 1 {
			return nil, fmt.Errorf("%w: is_buy byte %d", ErrInvalidInstruction, args[8])
		}
		return ExecuteTrade{Amount: binary.LittleEndian.Uint64(args[:8]), IsBuy: args[8] == 1}, nil
	default:
		return nil, fmt.Errorf("%w: discriminator %x", ErrUnknownInstruction, tag)
	}
}
