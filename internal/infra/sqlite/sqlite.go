package sqlite

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sifan077/PayLink/config"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewGorm opens a pure-Go SQLite database for local development.
func NewGorm(cfg config.SQLiteConfig) (*gorm.DB, error) {
	path := cfg.Path
	if path == "" {
		path = "paylink.db"
	}
	// Foreign keys stay off to match the Postgres migration settings.
	return open(path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
}

// NewInMemory opens a private in-memory database identified by name.
func NewInMemory(name string) (*gorm.DB, error) {
	return open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}

func open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open gorm connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite: retrieve sql db: %w", err)
	}
	// SQLite serialises writers; a single connection avoids lock errors.
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}
