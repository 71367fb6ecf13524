package testutil

import (
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

var (
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

// DB opens a fresh in-memory sqlite database per test so every unique index
// and upsert path is exercised against a real constraint engine.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}

	// A single conn keeps every session on the same in-memory database.
	sqlDB, err := gdb.DB()
	if err != nil {
		tb.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(
		&domain.Concept{},
		&domain.ConceptEdge{},
		&domain.GenerationLogEntry{},
		&domain.BranchStat{},
	); err != nil {
		tb.Fatalf("failed to automigrate test db: %v", err)
	}
	return gdb
}
