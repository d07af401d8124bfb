package ledger

import "errors"

var (
	ErrInvalidIdentity       = errors.New("invalid identity")
	ErrAccountNotFound       = errors.New("account not found")
	ErrAccountExists         = errors.New("account already in use")
	ErrInvalidAccountData    = errors.New("invalid account data")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInvalidTransferTarget = errors.New("invalid transfer target")
	ErrInvalidTransferSource = errors.New("transfer source carries data")
	ErrBalanceOverflow       = errors.New("balance overflow")
)
