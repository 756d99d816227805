// Package config loads service configuration from an optional YAML
// file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Port          string  `yaml:"port"`
	DatabaseURL   string  `yaml:"databaseUrl"`
	RedisURL      string  `yaml:"redisUrl"`
	OSRMURL       string  `yaml:"osrmUrl"`
	OSRMTimeoutMs int     `yaml:"osrmTimeoutMs"`
	RateRPS       float64 `yaml:"rateRps"`
	RateBurst     int     `yaml:"rateBurst"`
	Migrate       bool    `yaml:"migrate"`
}

func defaults() Config {
	return Config{
		Port:          "8080",
		OSRMURL:       "https://router.project-osrm.org",
		OSRMTimeoutMs: 10000,
		RateRPS:       20,
		RateBurst:     40,
		Migrate:       true,
	}
}

// Load reads the YAML file named by FLEETROUTE_CONFIG (default
// fleetroute.yaml). A missing file is fine; defaults and environment
// variables apply either way.
func Load() (Config, error) {
	cfg := defaults()

	path := os.Getenv("FLEETROUTE_CONFIG")
	if path == "" {
		path = "fleetroute.yaml"
	}
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("OSRM_URL"); v != "" {
		cfg.OSRMURL = v
	}
	if v := os.Getenv("OSRM_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OSRMTimeoutMs = n
		}
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateRPS = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateBurst = n
		}
	}
	if os.Getenv("DB_MIGRATE") == "false" {
		cfg.Migrate = false
	}
	return cfg, nil
}

// OSRMTimeout bounds a single routing-service call.
func (c Config) OSRMTimeout() time.Duration {
	return time.Duration(c.OSRMTimeoutMs) * time.Millisecond
}
