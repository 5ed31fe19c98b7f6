package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories/memory"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/services"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.AppURL())
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 60, cfg.RateLimit)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr())
	assert.Equal(t, 20*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, time.Minute, cfg.ExpiryInterval())

	svc, err := cfg.Services()
	require.NoError(t, err)
	assert.Equal(t, services.DefaultConfig(), svc)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("MATCH_RADIUS_KM", "12.5")
	t.Setenv("MATCH_MISSING_ORIGIN", "unfiltered")
	t.Setenv("TASK_DIRECT_ACCEPT", "false")
	t.Setenv("TASK_TTL_DAYS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.AppURL())

	svc, err := cfg.Services()
	require.NoError(t, err)
	assert.Equal(t, 12.5, svc.Match.RadiusKm)
	assert.Equal(t, services.MissingOriginUnfiltered, svc.Match.MissingOrigin)
	assert.False(t, svc.DirectAccept)
	assert.Equal(t, 7*24*time.Hour, svc.TaskTTL)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_driver: memory\nrate_limit_per_minute: 5\nlog_format: text\n"), 0o600))
	t.Setenv("RATE_LIMIT_PER_MINUTE", "7")
	t.Setenv("AUTH_JWT_SECRET", testSecret)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 7, cfg.RateLimit, "environment wins over the file")
	assert.Equal(t, "text", cfg.LogFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][2]string{
		"unknown driver":   {"STORE_DRIVER", "cassandra"},
		"zero rate limit":  {"RATE_LIMIT_PER_MINUTE", "0"},
		"unknown backend":  {"RATE_LIMIT_BACKEND", "memcached"},
		"negative radius":  {"MATCH_RADIUS_KM", "-1"},
		"limit over max":   {"MATCH_LIMIT", "500"},
		"bad policy":       {"MATCH_MISSING_ORIGIN", "guess"},
		"zero batch":       {"EXPIRY_BATCH_SIZE", "0"},
		"zero retries":     {"SIBLING_REJECT_RETRIES", "0"},
		"zero ttl":         {"TASK_TTL_DAYS", "0"},
		"zero expiry tick": {"EXPIRY_INTERVAL_SECONDS", "0"},
		"missing secret":   {"AUTH_JWT_SECRET", ""},
		"short secret":     {"AUTH_JWT_SECRET", "s3cret"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("AUTH_JWT_SECRET", testSecret)
			t.Setenv(kv[0], kv[1])
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	log := NewLogger(Config{LogLevel: "debug", LogFormat: "text"})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	log = NewLogger(Config{LogLevel: "loud"})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "tasks.db?_busy_timeout=5000", sqliteDSN("tasks.db"))
	assert.Equal(t, "file:x?mode=memory&_busy_timeout=5000", sqliteDSN("file:x?mode=memory"))
	assert.Equal(t, "x?_busy_timeout=1", sqliteDSN("x?_busy_timeout=1"))
}

func TestOpenStore(t *testing.T) {
	log := NewLogger(Config{LogLevel: "error"})

	store, err := OpenStore(context.Background(), Config{StoreDriver: "memory"}, log, false)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)

	cfg := Config{StoreDriver: "sqlite", DatabaseDSN: "file:" + t.Name() + "?mode=memory&cache=shared"}
	store, err = OpenStore(context.Background(), cfg, log, true)
	require.NoError(t, err)
	assert.IsType(t, &repository.GormStore{}, store)
	assert.NoError(t, store.Close(context.Background()))
}
