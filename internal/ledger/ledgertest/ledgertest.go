// Package ledgertest provides ledger stores backed by private in-memory
// sqlite databases for tests.
package ledgertest

import (
	"fmt"
	"strings"
	"testing"

	"bot-ledger-go/internal/ledger"
	"bot-ledger-go/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Account{}, &models.Instruction{}))
	return db
}

// NewStore returns a store on NewDB(t).
func NewStore(t testing.TB) *ledger.Store {
	return ledger.NewStore(NewDB(t), zap.NewNop())
}
