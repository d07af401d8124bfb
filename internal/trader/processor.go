package trader

import (
	"context"
	"math"

	"bot-ledger-go/internal/ledger"
	"go.uber.org/zap"
)

// Options are the bot program rules.
type Options struct {
	ProgramID ledger.Identity
	// EnforceRiskBound rejects risk percentages above 100 at creation.
	EnforceRiskBound bool
	// LamportsPerByteYear prices the rent charged when a bot is created.
	LamportsPerByteYear uint64
}

// Processor applies bot instructions. Each public operation is one atomic
// unit on the runtime: either all of its writes commit or none do.
type Processor struct {
	logger  *zap.Logger
	runtime ledger.Runtime
	opts    Options
	metrics *Metrics
}

// NewProcessor creates a new instruction processor.
func NewProcessor(logger *zap.Logger, runtime ledger.Runtime, opts Options, metrics *Metrics) *Processor {
	return &Processor{
		logger:  logger.Named("processor"),
		runtime: runtime,
		opts:    opts,
		metrics: metrics,
	}
}

// TradeResult describes a committed trade.
type TradeResult struct {
	Bot         *ledger.Bot
	TradeAmount uint64
	// Transferred is false for sells, which move no value.
	Transferred bool
}

// outcome is what an instruction changed, applied to metrics and logs only
// after the instruction commits.
type outcome struct {
	bot         *ledger.Bot
	trade       *TradeResult
	rent        uint64
	activeDelta int
}

// BotAddress returns the address of owner's bot record.
func (p *Processor) BotAddress(owner ledger.Identity) ledger.Identity {
	return ledger.DeriveBotAddress(p.opts.ProgramID, owner)
}

// CreateBot allocates owner's bot record in the inactive state with zeroed
// counters. The owner pays the account rent.
func (p *Processor) CreateBot(ctx context.Context, owner ledger.Identity, riskPercentage, strategyType uint8) (ledger.Identity, *ledger.Bot, error) {
	addr := p.BotAddress(owner)
	out, err := p.atomically(ctx, InstructionInitializeBot, addr, func(acc ledger.Accounts) (*outcome, error) {
		return p.createBot(ctx, acc, addr, owner, riskPercentage, strategyType)
	})
	if err != nil {
		return addr, nil, err
	}
	return addr, out.bot, nil
}

// ActivateBot moves the bot at addr to the active state.
func (p *Processor) ActivateBot(ctx context.Context, addr, caller ledger.Identity) (*ledger.Bot, error) {
	out, err := p.atomically(ctx, InstructionActivateBot, addr, func(acc ledger.Accounts) (*outcome, error) {
		return p.setActive(ctx, acc, addr, caller, true)
	})
	if err != nil {
		return nil, err
	}
	return out.bot, nil
}

// DeactivateBot moves the bot at addr to the inactive state.
func (p *Processor) DeactivateBot(ctx context.Context, addr, caller ledger.Identity) (*ledger.Bot, error) {
	out, err := p.atomically(ctx, InstructionDeactivateBot, addr, func(acc ledger.Accounts) (*outcome, error) {
		return p.setActive(ctx, acc, addr, caller, false)
	})
	if err != nil {
		return nil, err
	}
	return out.bot, nil
}

// ExecuteTrade sizes a trade from the bot's risk percentage and, for buys,
// transfers the sized amount from caller to market.
func (p *Processor) ExecuteTrade(ctx context.Context, addr, caller, market ledger.Identity, amount uint64, isBuy bool) (*TradeResult, error) {
	out, err := p.atomically(ctx, InstructionExecuteTrade, addr, func(acc ledger.Accounts) (*outcome, error) {
		return p.executeTrade(ctx, acc, addr, caller, market, amount, isBuy)
	})
	if err != nil {
		return nil, err
	}
	return out.trade, nil
}

// atomically runs fn as one unit on the runtime, then records the result.
func (p *Processor) atomically(ctx context.Context, instruction string, addr ledger.Identity, fn func(ledger.Accounts) (*outcome, error)) (*outcome, error) {
	var out *outcome
	err := p.runtime.Atomically(ctx, func(acc ledger.Accounts) error {
		var err error
		out, err = fn(acc)
		return err
	})
	p.metrics.observe(instruction, err)

	l := p.logger.With(zap.String("instruction", instruction), zap.Stringer("bot", addr))
	switch {
	case err == nil:
	case Classify(err) != nil:
		l.Warn("Instruction rejected", zap.Error(err))
		return nil, err
	default:
		l.Error("Instruction failed", zap.Error(err))
		return nil, err
	}

	p.metrics.activeBots.Add(float64(out.activeDelta))
	if out.trade != nil && out.trade.Transferred {
		p.metrics.transferred.Add(float64(out.trade.TradeAmount))
	}

	switch instruction {
	case InstructionInitializeBot:
		l.Info("Bot created",
			zap.Stringer("owner", out.bot.Owner),
			zap.Uint8("risk_percentage", out.bot.RiskPercentage),
			zap.Uint8("strategy_type", out.bot.StrategyType),
			zap.Uint64("rent", out.rent))
	case InstructionExecuteTrade:
		l.Info("Trade executed",
			zap.Uint64("trade_amount", out.trade.TradeAmount),
			zap.Bool("transferred", out.trade.Transferred),
			zap.Uint64("total_trades", out.bot.TotalTrades))
	default:
		l.Info("Bot state changed", zap.String("state", string(out.bot.State())))
	}
	return out, nil
}

func (p *Processor) createBot(ctx context.Context, acc ledger.Accounts, addr, owner ledger.Identity, riskPercentage, strategyType uint8) (*outcome, error) {
	if p.opts.EnforceRiskBound && riskPercentage > 100 {
		return nil, ErrInvalidRiskPercentage
	}

	bot := &ledger.Bot{
		Owner:          owner,
		RiskPercentage: riskPercentage,
		StrategyType:   strategyType,
	}
	rent := ledger.RentExemptMinimum(ledger.BotAccountSize, p.opts.LamportsPerByteYear)
	if err := acc.InitBot(ctx, addr, bot, owner, rent); err != nil {
		return nil, err
	}
	return &outcome{bot: bot, rent: rent}, nil
}

// ownedBot loads the bot at addr and checks that caller owns it.
func (p *Processor) ownedBot(ctx context.Context, acc ledger.Accounts, addr, caller ledger.Identity) (*ledger.Bot, error) {
	bot, err := acc.Bot(ctx, addr)
	if err != nil {
		return nil, err
	}
	if bot.Owner != caller {
		return nil, ErrUnauthorized
	}
	return bot, nil
}

// setActive performs the inactive<->active transition. Self-transitions fail.
func (p *Processor) setActive(ctx context.Context, acc ledger.Accounts, addr, caller ledger.Identity, active bool) (*outcome, error) {
	bot, err := p.ownedBot(ctx, acc, addr, caller)
	if err != nil {
		return nil, err
	}
	if active && bot.IsActive {
		return nil, ErrAlreadyActive
	}
	if !active && !bot.IsActive {
		return nil, ErrNotActive
	}

	bot.IsActive = active
	if err := acc.PutBot(ctx, addr, bot); err != nil {
		return nil, err
	}

	delta := 1
	if !active {
		delta = -1
	}
	return &outcome{bot: bot, activeDelta: delta}, nil
}

func (p *Processor) executeTrade(ctx context.Context, acc ledger.Accounts, addr, caller, market ledger.Identity, amount uint64, isBuy bool) (*outcome, error) {
	bot, err := p.ownedBot(ctx, acc, addr, caller)
	if err != nil {
		return nil, err
	}
	if !bot.IsActive {
		return nil, ErrNotActive
	}

	tradeAmount, err := TradeAmount(amount, bot.RiskPercentage)
	if err != nil {
		return nil, err
	}

	// There is no sell execution: a sell moves no value and is only counted.
	if isBuy {
		if err := acc.Transfer(ctx, caller, market, tradeAmount); err != nil {
			return nil, err
		}
	}

	if bot.TotalTrades == math.MaxUint64 {
		return nil, ErrArithmeticOverflow
	}
	bot.TotalTrades++
	if err := acc.PutBot(ctx, addr, bot); err != nil {
		return nil, err
	}

	return &outcome{
		bot:   bot,
		trade: &TradeResult{Bot: bot, TradeAmount: tradeAmount, Transferred: isBuy},
	}, nil
}
