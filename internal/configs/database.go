package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories/memory"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories/mongostore"
)

// NewDatabase opens the relational database named by STORE_DRIVER.
func NewDatabase(cfg Config, log *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.StoreDriver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.DatabaseDSN))
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("store driver %q is not relational", cfg.StoreDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("db open failed: %w", err)
	}

	if cfg.StoreDriver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000"
}

// OpenStore builds the store selected by STORE_DRIVER. Relational stores are
// migrated first when migrate is set.
func OpenStore(ctx context.Context, cfg Config, log *logrus.Logger, migrate bool) (repository.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return memory.NewStore(), nil
	case "mongo":
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	db, err := NewDatabase(cfg, log)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := repository.Migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return repository.NewGormStore(db), nil
}
