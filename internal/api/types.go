package api

import (
	"bot-ledger-go/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// BotView is the JSON representation of a bot record.
type BotView struct {
	Address          ledger.Identity `json:"address"`
	Owner            ledger.Identity `json:"owner"`
	RiskPercentage   uint8           `json:"risk_percentage"`
	StrategyType     uint8           `json:"strategy_type"`
	IsActive         bool            `json:"is_active"`
	State            ledger.State    `json:"state"`
	TotalTrades      uint64          `json:"total_trades"`
	SuccessfulTrades uint64          `json:"successful_trades"`
	TotalProfit      int64           `json:"total_profit"`
	WinRate          float64         `json:"win_rate"`
	Lamports         uint64          `json:"lamports"`
}

// NewBotView builds the view of bot stored at addr.
func NewBotView(addr ledger.Identity, bot *ledger.Bot, lamports uint64) BotView {
	view := BotView{
		Address:          addr,
		Owner:            bot.Owner,
		RiskPercentage:   bot.RiskPercentage,
		StrategyType:     bot.StrategyType,
		IsActive:         bot.IsActive,
		State:            bot.State(),
		TotalTrades:      bot.TotalTrades,
		SuccessfulTrades: bot.SuccessfulTrades,
		TotalProfit:      bot.TotalProfit,
		Lamports:         lamports,
	}
	if bot.TotalTrades > 0 {
		view.WinRate = float64(bot.SuccessfulTrades) / float64(bot.TotalTrades)
	}
	return view
}

// BalanceView is the native balance of an account.
type BalanceView struct {
	Address  ledger.Identity `json:"address"`
	Lamports uint64          `json:"lamports"`
	SOL      decimal.Decimal `json:"sol"`
}

// NewBalanceView builds a balance view.
func NewBalanceView(addr ledger.Identity, lamports uint64) BalanceView {
	return BalanceView{Address: addr, Lamports: lamports, SOL: ToSOL(lamports)}
}

// ToSOL converts lamports to SOL.
func ToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Shift(-9)
}

// ReceiptView is returned for a committed transaction.
type ReceiptView struct {
	ID          uuid.UUID `json:"id"`
	Instruction string    `json:"instruction"`
	TradeAmount uint64    `json:"trade_amount,omitempty"`
	Transferred bool      `json:"transferred,omitempty"`
	Bot         BotView   `json:"bot"`
}

// AirdropRequest asks the faucet to credit an account.
type AirdropRequest struct {
	Address  ledger.Identity `json:"address"`
	Lamports uint64          `json:"lamports"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string  `json:"error"`
	Code  *uint32 `json:"code,omitempty"`
	Name  string  `json:"name,omitempty"`
}
