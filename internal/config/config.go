// Package config содержит логику чтения конфигурации сервиса projectdesk.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress        = "localhost:8080"
	defaultDashboardCacheTTL = 30 * time.Second
)

// Config содержит параметры конфигурации сервиса projectdesk.
type Config struct {
	RunAddress             string        `env:"RUN_ADDRESS"`
	DatabaseURI            string        `env:"DATABASE_URI"`
	AuthSecret             string        `env:"AUTH_SECRET"`
	RedisAddress           string        `env:"REDIS_ADDRESS"`
	DashboardCacheTTL      time.Duration `env:"DASHBOARD_CACHE_TTL"`
	ActivityServiceAddress string        `env:"ACTIVITY_SERVICE_ADDRESS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for owner tokens")
	flag.StringVar(&cfg.RedisAddress, "c", "", "redis address for dashboard cache")
	flag.DurationVar(&cfg.DashboardCacheTTL, "t", defaultDashboardCacheTTL, "dashboard cache TTL")
	flag.StringVar(&cfg.ActivityServiceAddress, "l", "", "activity log service address")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.AuthSecret != "" {
		cfg.AuthSecret = envCfg.AuthSecret
	}
	if envCfg.RedisAddress != "" {
		cfg.RedisAddress = envCfg.RedisAddress
	}
	if envCfg.DashboardCacheTTL != 0 {
		cfg.DashboardCacheTTL = envCfg.DashboardCacheTTL
	}
	if envCfg.ActivityServiceAddress != "" {
		cfg.ActivityServiceAddress = envCfg.ActivityServiceAddress
	}

	cfg.applyDefaults()

	return cfg, nil
}

// FromEnv считывает конфигурацию только из переменных окружения и файла .env.
func FromEnv() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RunAddress == "" {
		c.RunAddress = defaultRunAddress
	}
	if c.DashboardCacheTTL <= 0 {
		c.DashboardCacheTTL = defaultDashboardCacheTTL
	}
}

// loadDotEnv подгружает .env, не перезаписывая уже заданные переменные. Отсутствие файла не ошибка.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
