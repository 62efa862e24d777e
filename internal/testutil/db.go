// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sifan077/PayLink/internal/app/model"
	"github.com/sifan077/PayLink/internal/infra/postgres"
	"github.com/sifan077/PayLink/internal/infra/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewDB returns a migrated in-memory database that is closed when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sqlite.NewInMemory(fmt.Sprintf("%s_%d", name, dbSeq.Add(1)))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := postgres.AutoMigrate(context.Background(), db, model.All()...); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
