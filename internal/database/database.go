package database

import (
	"fmt"

	"bot-ledger-go/internal/config"
	"bot-ledger-go/internal/ledger"
	"bot-ledger-go/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection and performs auto-migration.
// The pool is limited to a single connection so instructions are applied one
// at a time.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the ledger tables and funds the genesis
// accounts. Genesis accounts that already exist are left untouched.
func AutoMigrate(db *gorm.DB, cfg *config.Config) error {
	if err := db.AutoMigrate(&models.Account{}, &models.Instruction{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	for _, g := range cfg.Ledger.Genesis {
		addr, err := ledger.ParseIdentity(g.Address)
		if err != nil {
			return fmt.Errorf("invalid genesis account: %w", err)
		}
		acc := models.Account{Address: addr.String(), Lamports: g.Lamports}
		if err := db.FirstOrCreate(&acc, models.Account{Address: addr.String()}).Error; err != nil {
			return fmt.Errorf("failed to fund genesis account '%s': %w", g.Address, err)
		}
	}

	return nil
}
