package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Progress store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Quiz struct {
		TTL              string `yaml:"ttl"`
		DefaultTimeLimit int    `yaml:"default_time_limit"`
	} `yaml:"quiz"`
	Progress struct {
		Backend    string `yaml:"backend"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"progress"`
}

// Load reads YAML config from path, then applies environment overrides and
// defaults. A missing file is not an error: env and defaults still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) {
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Postgres.URL, "DATABASE_URL")
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "MONGO_DATABASE")
	setString(&cfg.Progress.Backend, "PROGRESS_BACKEND")
	if v, err := strconv.Atoi(os.Getenv("PROGRESS_MAX_RETRIES")); err == nil {
		cfg.Progress.MaxRetries = v
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "assessment"
	}
	if cfg.Quiz.DefaultTimeLimit == 0 {
		cfg.Quiz.DefaultTimeLimit = 1800
	}
	if cfg.Progress.Backend == "" {
		cfg.Progress.Backend = BackendMemory
	}
	if cfg.Progress.MaxRetries <= 0 {
		cfg.Progress.MaxRetries = 5
	}
}

func (cfg Config) validate() error {
	switch cfg.Progress.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return errors.New("progress backend redis needs redis.addr")
		}
	case BackendPostgres:
		if cfg.Postgres.URL == "" {
			return errors.New("progress backend postgres needs postgres.url")
		}
	case BackendMongo:
		if cfg.Mongo.URI == "" {
			return errors.New("progress backend mongo needs mongo.uri")
		}
	default:
		return fmt.Errorf("unknown progress backend %q", cfg.Progress.Backend)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg Config) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	switch cfg.Log.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}
	return logger, nil
}
