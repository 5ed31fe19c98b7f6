package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/auth"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/services"
)

type Config struct {
	AppHost                string `mapstructure:"app_host"`
	AppPort                string `mapstructure:"app_port"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`

	StoreDriver         string `mapstructure:"store_driver"`
	DatabaseDSN         string `mapstructure:"database_dsn"`
	DatabaseAutoMigrate bool   `mapstructure:"database_auto_migrate"`
	MongoURI            string `mapstructure:"mongo_uri"`
	MongoDatabase       string `mapstructure:"mongo_database"`

	RateLimit        int    `mapstructure:"rate_limit_per_minute"`
	RateLimitBackend string `mapstructure:"rate_limit_backend"`
	RedisHost        string `mapstructure:"redis_host"`
	RedisPort        string `mapstructure:"redis_port"`
	RedisKeyPrefix   string `mapstructure:"redis_key_prefix"`

	JWTSecret string `mapstructure:"auth_jwt_secret"`
	JWTIssuer string `mapstructure:"auth_jwt_issuer"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	MatchRadiusKm       float64 `mapstructure:"match_radius_km"`
	MatchLimit          int     `mapstructure:"match_limit"`
	MatchMaxLimit       int     `mapstructure:"match_max_limit"`
	MatchCandidatePool  int     `mapstructure:"match_candidate_pool"`
	MatchSkillPrefilter bool    `mapstructure:"match_skill_prefilter"`
	MatchMissingOrigin  string  `mapstructure:"match_missing_origin"`

	TaskDirectAccept      bool `mapstructure:"task_direct_accept"`
	TaskTTLDays           int  `mapstructure:"task_ttl_days"`
	ExpiryBatchSize       int  `mapstructure:"expiry_batch_size"`
	ExpiryIntervalSeconds int  `mapstructure:"expiry_interval_seconds"`
	SiblingRejectRetries  int  `mapstructure:"sibling_reject_retries"`
}

func (c Config) AppURL() string {
	return fmt.Sprintf("%s:%s", c.AppHost, c.AppPort)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func (c Config) ExpiryInterval() time.Duration {
	return time.Duration(c.ExpiryIntervalSeconds) * time.Second
}

// Services builds the service-layer configuration.
func (c Config) Services() (services.Config, error) {
	missing, err := services.ParseMissingOrigin(c.MatchMissingOrigin)
	if err != nil {
		return services.Config{}, err
	}
	return services.Config{
		DirectAccept:         c.TaskDirectAccept,
		TaskTTL:              time.Duration(c.TaskTTLDays) * 24 * time.Hour,
		SiblingRejectRetries: c.SiblingRejectRetries,
		ExpiryBatchSize:      c.ExpiryBatchSize,
		Match: services.MatchConfig{
			RadiusKm:       c.MatchRadiusKm,
			Limit:          c.MatchLimit,
			MaxLimit:       c.MatchMaxLimit,
			CandidatePool:  c.MatchCandidatePool,
			SkillPrefilter: c.MatchSkillPrefilter,
			MissingOrigin:  missing,
		},
	}, nil
}

// Load reads an optional .env, then the optional config file, then the
// environment. Environment variables win.
func Load(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_host", "127.0.0.1")
	v.SetDefault("app_port", "8080")
	v.SetDefault("shutdown_timeout_seconds", 20)

	v.SetDefault("store_driver", "sqlite")
	v.SetDefault("database_dsn", "tasks.db")
	v.SetDefault("database_auto_migrate", true)
	v.SetDefault("mongo_uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongo_database", "task_connect")

	v.SetDefault("rate_limit_per_minute", 60)
	v.SetDefault("rate_limit_backend", "memory")
	v.SetDefault("redis_host", "127.0.0.1")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("redis_key_prefix", "task_connect:ratelimit")

	v.SetDefault("auth_jwt_secret", "")
	v.SetDefault("auth_jwt_issuer", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	defaults := services.DefaultConfig()
	v.SetDefault("match_radius_km", defaults.Match.RadiusKm)
	v.SetDefault("match_limit", defaults.Match.Limit)
	v.SetDefault("match_max_limit", defaults.Match.MaxLimit)
	v.SetDefault("match_candidate_pool", defaults.Match.CandidatePool)
	v.SetDefault("match_skill_prefilter", defaults.Match.SkillPrefilter)
	v.SetDefault("match_missing_origin", string(defaults.Match.MissingOrigin))

	v.SetDefault("task_direct_accept", defaults.DirectAccept)
	v.SetDefault("task_ttl_days", 30)
	v.SetDefault("expiry_batch_size", defaults.ExpiryBatchSize)
	v.SetDefault("expiry_interval_seconds", 60)
	v.SetDefault("sibling_reject_retries", defaults.SiblingRejectRetries)
}

func validate(cfg Config) error {
	if cfg.AppHost == "" || cfg.AppPort == "" {
		return errors.New("APP_HOST and APP_PORT must not be empty (e.g. 127.0.0.1 and 8080)")
	}
	switch cfg.StoreDriver {
	case "sqlite", "postgres":
		if cfg.DatabaseDSN == "" {
			return errors.New("DATABASE_DSN must not be empty")
		}
	case "mongo":
		if cfg.MongoURI == "" || cfg.MongoDatabase == "" {
			return errors.New("MONGO_URI and MONGO_DATABASE must not be empty")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be one of sqlite, postgres, mongo, memory; got %q", cfg.StoreDriver)
	}
	if len(cfg.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", auth.MinSecretLength)
	}
	if cfg.RateLimit <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be greater than 0")
	}
	if cfg.RateLimitBackend != "memory" && cfg.RateLimitBackend != "redis" {
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis; got %q", cfg.RateLimitBackend)
	}
	if cfg.ShutdownTimeoutSeconds <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT_SECONDS must be greater than 0")
	}
	if cfg.MatchRadiusKm <= 0 {
		return errors.New("MATCH_RADIUS_KM must be greater than 0")
	}
	if cfg.MatchLimit <= 0 || cfg.MatchMaxLimit < cfg.MatchLimit {
		return errors.New("MATCH_LIMIT must be greater than 0 and at most MATCH_MAX_LIMIT")
	}
	if cfg.MatchCandidatePool <= 0 {
		return errors.New("MATCH_CANDIDATE_POOL must be greater than 0")
	}
	if _, err := services.ParseMissingOrigin(cfg.MatchMissingOrigin); err != nil {
		return fmt.Errorf("MATCH_MISSING_ORIGIN: %w", err)
	}
	if cfg.TaskTTLDays <= 0 {
		return errors.New("TASK_TTL_DAYS must be greater than 0")
	}
	if cfg.ExpiryBatchSize <= 0 {
		return errors.New("EXPIRY_BATCH_SIZE must be greater than 0")
	}
	if cfg.ExpiryIntervalSeconds <= 0 {
		return errors.New("EXPIRY_INTERVAL_SECONDS must be greater than 0")
	}
	if cfg.SiblingRejectRetries <= 0 {
		return errors.New("SIBLING_REJECT_RETRIES must be greater than 0")
	}
	return nil
}
