package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/bits"

	"bot-ledger-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Accounts is the view of ledger state available to one instruction.
// Every call made through it commits or rolls back together.
type Accounts interface {
	// Bot loads and decodes the bot record at addr.
	Bot(ctx context.Context, addr Identity) (*Bot, error)
	// InitBot allocates the bot record at addr, charging rent to payer.
	InitBot(ctx context.Context, addr Identity, bot *Bot, payer Identity, rent uint64) error
	// PutBot overwrites an existing bot record.
	PutBot(ctx context.Context, addr Identity, bot *Bot) error
	// Transfer moves native value between two identities.
	Transfer(ctx context.Context, from, to Identity, amount uint64) error
	Balance(ctx context.Context, addr Identity) (uint64, error)
	HasInstruction(ctx context.Context, id string) (bool, error)
	RecordInstruction(ctx context.Context, rec *models.Instruction) error
}

// Runtime runs fn as one atomic unit: if fn returns an error, none of its
// writes are observable afterwards.
type Runtime interface {
	Atomically(ctx context.Context, fn func(Accounts) error) error
}

// Store is the gorm-backed account store.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Runtime = (*Store)(nil)

// NewStore creates a Store on top of a migrated database.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger.Named("ledger")}
}

// Atomically runs fn inside a database transaction.
func (s *Store) Atomically(ctx context.Context, fn func(Accounts) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txAccounts{tx: tx})
	})
}

// LoadBot reads a bot record outside of any instruction.
func (s *Store) LoadBot(ctx context.Context, addr Identity) (*Bot, error) {
	return (&txAccounts{tx: s.db}).Bot(ctx, addr)
}

// Balance returns the lamports held by addr; unknown accounts hold zero.
func (s *Store) Balance(ctx context.Context, addr Identity) (uint64, error) {
	return (&txAccounts{tx: s.db}).Balance(ctx, addr)
}

// Airdrop credits newly minted lamports to addr.
func (s *Store) Airdrop(ctx context.Context, to Identity, lamports uint64) error {
	if to.IsZero() {
		return ErrInvalidTransferTarget
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return (&txAccounts{tx: tx}).credit(ctx, to, lamports)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Airdrop credited", zap.Stringer("to", to), zap.Uint64("lamports", lamports))
	return nil
}

// CountActiveBots scans every bot record and counts the active ones.
func (s *Store) CountActiveBots(ctx context.Context) (int, error) {
	var accounts []models.Account
	err := s.db.WithContext(ctx).
		Where("length(data) = ?", BotAccountSize).
		Find(&accounts).Error
	if err != nil {
		return 0, fmt.Errorf("failed to scan bot accounts: %w", err)
	}

	n := 0
	for _, acc := range accounts {
		var bot Bot
		if bot.UnmarshalBinary(acc.Data) != nil {
			continue
		}
		if bot.IsActive {
			n++
		}
	}
	return n, nil
}

// Instructions lists journalled instructions newest first. A zero bot
// lists instructions for every bot.
func (s *Store) Instructions(ctx context.Context, bot Identity, limit int) ([]models.Instruction, error) {
	q := s.db.WithContext(ctx).Order("created_at desc").Order("rowid desc")
	if !bot.IsZero() {
		q = q.Where("bot = ?", bot.String())
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []models.Instruction
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list instructions: %w", err)
	}
	return out, nil
}

type txAccounts struct {
	tx *gorm.DB
}

func (a *txAccounts) account(ctx context.Context, addr Identity) (*models.Account, error) {
	var acc models.Account
	err := a.tx.WithContext(ctx).First(&acc, "address = ?", addr.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", addr, err)
	}
	return &acc, nil
}

func (a *txAccounts) Bot(ctx context.Context, addr Identity) (*Bot, error) {
	acc, err := a.account(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !acc.HasData() {
		return nil, ErrAccountNotFound
	}

	bot := new(Bot)
	if err := bot.UnmarshalBinary(acc.Data); err != nil {
		return nil, fmt.Errorf("account %s: %w", addr, err)
	}
	return bot, nil
}

func (a *txAccounts) InitBot(ctx context.Context, addr Identity, bot *Bot, payer Identity, rent uint64) error {
	existing, err := a.account(ctx, addr)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return err
	}
	if existing != nil && existing.HasData() {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}

	if rent > 0 {
		if err := a.Transfer(ctx, payer, addr, rent); err != nil {
			return fmt.Errorf("failed to fund bot account: %w", err)
		}
	} else if existing == nil {
		if err := a.tx.WithContext(ctx).Create(&models.Account{Address: addr.String()}).Error; err != nil {
			return fmt.Errorf("failed to allocate account %s: %w", addr, err)
		}
	}

	return a.writeData(ctx, addr, bot)
}

func (a *txAccounts) PutBot(ctx context.Context, addr Identity, bot *Bot) error {
	return a.writeData(ctx, addr, bot)
}

func (a *txAccounts) writeData(ctx context.Context, addr Identity, bot *Bot) error {
	data, err := bot.MarshalBinary()
	if err != nil {
		return err
	}
	res := a.tx.WithContext(ctx).Model(&models.Account{}).
		Where("address = ?", addr.String()).
		Update("data", data)
	if res.Error != nil {
		return fmt.Errorf("failed to write account %s: %w", addr, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (a *txAccounts) Transfer(ctx context.Context, from, to Identity, amount uint64) error {
	if to.IsZero() {
		return ErrInvalidTransferTarget
	}

	var have uint64
	src, err := a.account(ctx, from)
	switch {
	case errors.Is(err, ErrAccountNotFound):
	case err != nil:
		return err
	default:
		if src.HasData() {
			return fmt.Errorf("%w: %s", ErrInvalidTransferSource, from)
		}
		have = src.Lamports
	}
	if have < amount {
		return fmt.Errorf("%w: %s has %d lamports, needs %d", ErrInsufficientFunds, from, have, amount)
	}
	if from == to || amount == 0 {
		return nil
	}

	if err := a.setLamports(ctx, from, have-amount); err != nil {
		return err
	}
	return a.credit(ctx, to, amount)
}

// credit adds lamports to addr, creating the account if needed.
func (a *txAccounts) credit(ctx context.Context, addr Identity, lamports uint64) error {
	acc := models.Account{Address: addr.String()}
	if err := a.tx.WithContext(ctx).FirstOrCreate(&acc, models.Account{Address: addr.String()}).Error; err != nil {
		return fmt.Errorf("failed to load account %s: %w", addr, err)
	}

	// sqlite stores INTEGER as signed 64-bit.
	sum, carry := bits.Add64(acc.Lamports, lamports, 0)
	if carry != 0 || sum > math.MaxInt64 {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, addr)
	}
	return a.setLamports(ctx, addr, sum)
}

func (a *txAccounts) setLamports(ctx context.Context, addr Identity, lamports uint64) error {
	err := a.tx.WithContext(ctx).Model(&models.Account{}).
		Where("address = ?", addr.String()).
		Update("lamports", lamports).Error
	if err != nil {
		return fmt.Errorf("failed to update balance of %s: %w", addr, err)
	}
	return nil
}

func (a *txAccounts) Balance(ctx context.Context, addr Identity) (uint64, error) {
	acc, err := a.account(ctx, addr)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.Lamports, nil
}

func (a *txAccounts) HasInstruction(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := a.tx.WithContext(ctx).Model(&models.Instruction{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to look up instruction %s: %w", id, err)
	}
	return n > 0, nil
}

func (a *txAccounts) RecordInstruction(ctx context.Context, rec *models.Instruction) error {
	if err := a.tx.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to journal instruction %s: %w", rec.ID, err)
	}
	return nil
}
