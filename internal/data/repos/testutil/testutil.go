package testutil

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/kairon-labs/kairon-backend/internal/db"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

var (
	dbOnce sync.Once
	gdb    *gorm.DB
	dbErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB opens the shared test database: Postgres when TEST_POSTGRES_DSN is set,
// otherwise an in-memory SQLite so repo tests run anywhere.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		cfg := &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		}

		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn != "" {
			gdb, dbErr = gorm.Open(postgres.Open(dsn), cfg)
		} else {
			gdb, dbErr = gorm.Open(sqlite.Open("file::memory:?cache=shared"), cfg)
		}
		if dbErr != nil {
			return
		}

		if dbErr = db.AutoMigrate(gdb); dbErr != nil {
			return
		}
		dbErr = db.EnsureIndexes(gdb)
	})

	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return gdb
}

func Tx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

// SeedBot creates an account and bot inside tx and returns the bot id.
func SeedBot(tb testing.TB, tx *gorm.DB) uuid.UUID {
	tb.Helper()
	account := &domain.Account{
		ID:        uuid.New(),
		Name:      "test-account-" + uuid.NewString()[:8],
		User:      "tester@kairon.ai",
		Status:    true,
		Timestamp: time.Now().UTC(),
	}
	if err := tx.Create(account).Error; err != nil {
		tb.Fatalf("seed account: %v", err)
	}
	bot := &domain.Bot{
		ID:        uuid.New(),
		Name:      "test-bot-" + uuid.NewString()[:8],
		Account:   account.ID,
		User:      "tester@kairon.ai",
		Status:    true,
		Timestamp: time.Now().UTC(),
	}
	if err := tx.Create(bot).Error; err != nil {
		tb.Fatalf("seed bot: %v", err)
	}
	return bot.ID
}
