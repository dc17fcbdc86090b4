// Package config loads daemon settings from an optional YAML file and
// ENTRYD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/infra"
)

const (
	fileName  = "config"
	fileType  = "yaml"
	envPrefix = "ENTRYD"
)

// DuplicateScan selects which app id sets are checked on entry registration.
type DuplicateScan string

const (
	DuplicateScanOff      DuplicateScan = "off"
	DuplicateScanCatalog  DuplicateScan = "catalog"
	DuplicateScanExternal DuplicateScan = "external"
	DuplicateScanAll      DuplicateScan = "all"
)

// Catalog reports whether ids already in the catalog are rejected.
func (d DuplicateScan) Catalog() bool {
	return d == DuplicateScanCatalog || d == DuplicateScanAll
}

// External reports whether ids installed outside the daemon are rejected.
func (d DuplicateScan) External() bool {
	return d == DuplicateScanExternal || d == DuplicateScanAll
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Config holds all daemon settings.
type Config struct {
	RuntimeDir        string        `mapstructure:"runtime_dir"`
	PersistentDir     string        `mapstructure:"persistent_dir"`
	SnapshotPath      string        `mapstructure:"snapshot_path"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	DuplicateScan     DuplicateScan `mapstructure:"duplicate_scan"`
	Refresh           bool          `mapstructure:"refresh"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
	Log               LogConfig     `mapstructure:"log"`
}

// DefaultFilePath returns $XDG_CONFIG_HOME/desktop-entry-daemon/config.yaml.
func DefaultFilePath() string {
	return filepath.Join(xdg.ConfigHome, infra.AppDirName, fileName+"."+fileType)
}

// Load reads settings. An explicit path must exist; the default path is
// optional. Environment variables override file values, e.g.
// ENTRYD_RECONCILE_INTERVAL=5s or ENTRYD_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(fileType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultFilePath()
	}
	if _, err := os.Stat(path); err == nil || explicit {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	dirs := infra.DetectDirs()
	v.SetDefault("runtime_dir", dirs.TransientRoot)
	v.SetDefault("persistent_dir", dirs.PersistentRoot)
	v.SetDefault("snapshot_path", dirs.SnapshotPath)
	v.SetDefault("reconcile_interval", 2*time.Second)
	v.SetDefault("duplicate_scan", string(DuplicateScanAll))
	v.SetDefault("refresh", true)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.DuplicateScan {
	case DuplicateScanOff, DuplicateScanCatalog, DuplicateScanExternal, DuplicateScanAll:
	default:
		errs = append(errs, fmt.Errorf("duplicate_scan must be one of off, catalog, external, all; got %q", c.DuplicateScan))
	}
	if c.ReconcileInterval <= 0 {
		errs = append(errs, fmt.Errorf("reconcile_interval must be positive, got %s", c.ReconcileInterval))
	}
	if c.RuntimeDir == "" || c.PersistentDir == "" || c.SnapshotPath == "" {
		errs = append(errs, errors.New("runtime_dir, persistent_dir and snapshot_path must be set"))
	}
	return errors.Join(errs...)
}

// Dirs returns the storage locations.
func (c *Config) Dirs() infra.Dirs {
	return infra.Dirs{
		TransientRoot:  c.RuntimeDir,
		PersistentRoot: c.PersistentDir,
		SnapshotPath:   c.SnapshotPath,
	}
}
