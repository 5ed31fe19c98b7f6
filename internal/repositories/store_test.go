package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories/storetest"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect database")
	require.NoError(t, repository.Migrate(db), "failed to migrate database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	return db
}

func TestGormStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		store := repository.NewGormStore(setupTestDB(t))
		t.Cleanup(func() { _ = store.Close(context.Background()) })
		return store
	})
}
