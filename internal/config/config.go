package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"telegram-invoicing-crm/internal/catalog"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Mode     string  `yaml:"mode"` // polling | webhook (future)
	Workers  int     `yaml:"workers"`
	AdminIDs []int64 `yaml:"admin_ids"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // conversation flow TTL
}

type WebConfig struct {
	Port       int           `yaml:"port"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	APIKey     string        `yaml:"api_key"` // dashboard login credential
}

type AssetsConfig struct {
	Dir string `yaml:"dir"`
}

type ProofConfig struct {
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	SkipTLSVerify   bool          `yaml:"skip_tls_verify"` // for self-hosted bot API deployments only
}

type SchedulerConfig struct {
	ExpiryInterval time.Duration `yaml:"expiry_interval"`
}

type Config struct {
	Bot       BotConfig                     `yaml:"bot"`
	Log       LogConfig                     `yaml:"log"`
	Database  DatabaseConfig                `yaml:"database"`
	Redis     RedisConfig                   `yaml:"redis"`
	Web       WebConfig                     `yaml:"web"`
	Assets    AssetsConfig                  `yaml:"assets"`
	Proof     ProofConfig                   `yaml:"proof"`
	Scheduler SchedulerConfig               `yaml:"scheduler"`
	Plans     map[string]catalog.Definition `yaml:"plans"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 15 * time.Minute
	}
	if cfg.Web.SessionTTL <= 0 {
		cfg.Web.SessionTTL = 30 * time.Minute
	}
	if cfg.Assets.Dir == "" {
		cfg.Assets.Dir = "data/assets"
	}
	if cfg.Proof.DownloadTimeout <= 0 {
		cfg.Proof.DownloadTimeout = 30 * time.Second
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = time.Hour
	}

	// ADMIN_TELEGRAM_IDS overrides the yaml list (comma-separated, trimmed).
	if ids, err := adminIDsFromEnv(); err != nil {
		return nil, err
	} else if ids != nil {
		cfg.Bot.AdminIDs = ids
	}

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if len(cfg.Bot.AdminIDs) == 0 {
		return nil, errors.New("bot.admin_ids (or ADMIN_TELEGRAM_IDS) is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func adminIDsFromEnv() ([]int64, error) {
	raw := os.Getenv("ADMIN_TELEGRAM_IDS")
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_IDS: %q is not a numeric id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
