package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/modelrail/go-trackside/logger"
)

// Config is the resolved daemon configuration after merging defaults, the
// config file and flag overrides.
type Config struct {
	Port             int
	ConnTimeout      time.Duration
	MaxHeartbeatFail int
	LogLevel         string
	SimHardware      bool
}

// DefaultConfig returns the daemon defaults: the conventional peripheral
// listen port and the standard link timing.
func DefaultConfig() Config {
	return Config{
		Port:             14200,
		ConnTimeout:      3 * time.Second,
		MaxHeartbeatFail: 5,
		LogLevel:         "info",
		SimHardware:      true,
	}
}

// fileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type fileConfig struct {
	Port             int    `toml:"port"`
	ConnTimeout      string `toml:"conn_timeout"`
	MaxHeartbeatFail int    `toml:"max_heartbeat_fail"`
	LogLevel         string `toml:"log_level"`
	SimHardware      *bool  `toml:"sim_hardware"`
}

// loadFileConfig reads and parses a TOML config file.
func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig

	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}

	return fc, nil
}

// defaultConfigPath returns ~/.trackside/tracksided.toml if the user home
// directory is accessible.
func defaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".trackside", "tracksided.toml")
	}

	return ""
}

// applyFileConfig folds file values into cfg, skipping any field whose
// flag was set explicitly on the command line.
func applyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	if fc.Port != 0 && !changed["port"] {
		cfg.Port = fc.Port
	}
	if fc.ConnTimeout != "" && !changed["conn-timeout"] {
		d, err := time.ParseDuration(fc.ConnTimeout)
		if err != nil {
			return fmt.Errorf("conn_timeout: %w", err)
		}
		cfg.ConnTimeout = d
	}
	if fc.MaxHeartbeatFail != 0 && !changed["max-heartbeat-fail"] {
		cfg.MaxHeartbeatFail = fc.MaxHeartbeatFail
	}
	if fc.LogLevel != "" && !changed["log-level"] {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.SimHardware != nil && !changed["sim-hardware"] {
		cfg.SimHardware = *fc.SimHardware
	}

	return nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// parseLogLevel maps a config string to a logger level, defaulting to info
// for anything unrecognized.
func parseLogLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "info":
		return logger.InfoLevel
	case "warn", "warning":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
