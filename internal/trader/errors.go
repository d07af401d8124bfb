package trader

import (
	"errors"
	"fmt"

	"bot-ledger-go/internal/ledger"
)

// BotError is an instruction failure with a stable numeric code.
// Codes below 100 are ledger errors, 100-199 instruction decoding,
// 2000-2999 account constraints, 3000-3999 account state, 6000+ bot rules.
type BotError struct {
	Code uint32
	Name string
	Msg  string
}

func (e *BotError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

var (
	ErrAlreadyActive         = &BotError{Code: 6000, Name: "AlreadyActive", Msg: "bot is already active"}
	ErrNotActive             = &BotError{Code: 6001, Name: "NotActive", Msg: "bot is not active"}
	ErrInvalidRiskPercentage = &BotError{Code: 6002, Name: "InvalidRiskPercentage", Msg: "risk percentage must be between 0 and 100"}
	ErrArithmeticOverflow    = &BotError{Code: 6003, Name: "ArithmeticOverflow", Msg: "arithmetic overflow"}

	ErrUnauthorized       = &BotError{Code: 2001, Name: "ConstraintHasOne", Msg: "signer is not the bot owner"}
	ErrBotAddressMismatch = &BotError{Code: 2006, Name: "ConstraintSeeds", Msg: "bot address is not derived from the signer"}
	ErrInvalidSignature   = &BotError{Code: 3010, Name: "AccountNotSigner", Msg: "transaction signature does not verify"}

	ErrUnknownInstruction = &BotError{Code: 101, Name: "InstructionFallbackNotFound", Msg: "unknown instruction"}
	ErrInvalidInstruction = &BotError{Code: 102, Name: "InstructionDidNotDeserialize", Msg: "instruction data is malformed"}

	ErrDuplicateTransaction = &BotError{Code: 5, Name: "AlreadyProcessed", Msg: "transaction id was already processed"}
)

// ErrAllocationExists is returned when creating a bot for an owner that already has one.
var ErrAllocationExists = ledger.ErrAccountExists

var ledgerErrors = []struct {
	err  error
	code *BotError
}{
	{ledger.ErrAccountExists, &BotError{Code: 0, Name: "AccountAlreadyInUse", Msg: "bot account already exists"}},
	{ledger.ErrInsufficientFunds, &BotError{Code: 1, Name: "InsufficientFunds", Msg: "insufficient funds for transfer"}},
	{ledger.ErrInvalidTransferTarget, &BotError{Code: 2, Name: "InvalidTransferTarget", Msg: "invalid transfer target"}},
	{ledger.ErrInvalidTransferSource, &BotError{Code: 3, Name: "InvalidTransferSource", Msg: "transfer source carries data"}},
	{ledger.ErrBalanceOverflow, &BotError{Code: 4, Name: "BalanceOverflow", Msg: "balance overflow"}},
	{ledger.ErrAccountNotFound, &BotError{Code: 3012, Name: "AccountNotInitialized", Msg: "bot account not found"}},
	{ledger.ErrInvalidAccountData, &BotError{Code: 3002, Name: "AccountDiscriminatorMismatch", Msg: "account is not a bot record"}},
}

// Classify returns the BotError describing err, or nil if err is not an
// instruction failure (for example a storage error).
func Classify(err error) *BotError {
	if err == nil {
		return nil
	}
	var be *BotError
	if errors.As(err, &be) {
		return be
	}
	for _, le := range ledgerErrors {
		if errors.Is(err, le.err) {
			return le.code
		}
	}
	return nil
}
