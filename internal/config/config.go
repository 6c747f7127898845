// Package config loads server settings from an optional YAML file and
// DOMINO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string        `yaml:"addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	MaxGames        int           `yaml:"max_games"`
	Seed            uint64        `yaml:"seed"`
	Heartbeat       time.Duration `yaml:"heartbeat"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		MaxGames:        1000,
		Heartbeat:       15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load starts from Default, applies the YAML file at path when path is not
// empty, then the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var err error
	get := func(k string) (string, bool) {
		v, ok := lookup("DOMINO_" + k)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	if v, ok := get("ADDR"); ok {
		c.Addr = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := get("MAX_GAMES"); ok {
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("DOMINO_MAX_GAMES: %w", perr))
		}
		c.MaxGames = n
	}
	if v, ok := get("SEED"); ok {
		n, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("DOMINO_SEED: %w", perr))
		}
		c.Seed = n
	}
	if v, ok := get("HEARTBEAT"); ok {
		d, perr := time.ParseDuration(v)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("DOMINO_HEARTBEAT: %w", perr))
		}
		c.Heartbeat = d
	}
	return err
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var err error
	if c.Addr == "" {
		err = multierr.Append(err, errors.New("addr is empty"))
	}
	if _, lerr := zapcore.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log_level: %w", lerr))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		err = multierr.Append(err, fmt.Errorf("log_format %q: want json or console", c.LogFormat))
	}
	if c.MaxGames < 1 {
		err = multierr.Append(err, fmt.Errorf("max_games %d: must be positive", c.MaxGames))
	}
	if c.Heartbeat <= 0 {
		err = multierr.Append(err, fmt.Errorf("heartbeat %s: must be positive", c.Heartbeat))
	}
	if c.ShutdownTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("shutdown_timeout %s: must be positive", c.ShutdownTimeout))
	}
	return err
}

// NewLogger builds a production logger for "json" and a development logger
// for "console", both at the configured level.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
