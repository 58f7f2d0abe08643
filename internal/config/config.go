// Package config loads invrpt settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. INVRPT_SYNC_SAVE_FOLDER.
const EnvPrefix = "INVRPT"

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "invrpt.yaml"

// Config is the full invrpt configuration.
type Config struct {
	// DibolSchema is the .DEF file describing the extract layout.
	DibolSchema string `yaml:"dibol_schema" mapstructure:"dibol_schema"`

	// Database is the SQLite file path.
	Database string `yaml:"database" mapstructure:"database"`

	Sync    SyncConfig    `yaml:"sync" mapstructure:"sync"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// SyncConfig configures the per-branch pipeline and the daemon.
type SyncConfig struct {
	SaveFolder       string        `yaml:"save_folder" mapstructure:"save_folder"`
	ArchiveFolder    string        `yaml:"archive_folder" mapstructure:"archive_folder"`
	MaxArchiveFiles  int           `yaml:"max_archive_files" mapstructure:"max_archive_files"`
	FTPTimeout       time.Duration `yaml:"ftp_timeout" mapstructure:"ftp_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	DebounceInterval time.Duration `yaml:"debounce_interval" mapstructure:"debounce_interval"`
}

// ServerConfig configures the dashboard. Port 0 disables it.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LoggingConfig configures the optional rotating log file.
type LoggingConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DibolSchema: "INVPRT.DEF",
		Database:    "data/invrpt.db",
		Sync: SyncConfig{
			SaveFolder:       "files/work",
			ArchiveFolder:    "files/archive",
			MaxArchiveFiles:  10,
			FTPTimeout:       30 * time.Second,
			PollInterval:     0,
			DebounceInterval: 2 * time.Second,
		},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Load reads the configuration. An empty path looks for DefaultFile in the
// working directory and falls back to the defaults when it is absent; an
// explicit path must exist. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".yaml"))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply to keys
// missing from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("dibol_schema", d.DibolSchema)
	v.SetDefault("database", d.Database)

	v.SetDefault("sync.save_folder", d.Sync.SaveFolder)
	v.SetDefault("sync.archive_folder", d.Sync.ArchiveFolder)
	v.SetDefault("sync.max_archive_files", d.Sync.MaxArchiveFiles)
	v.SetDefault("sync.ftp_timeout", d.Sync.FTPTimeout)
	v.SetDefault("sync.poll_interval", d.Sync.PollInterval)
	v.SetDefault("sync.debounce_interval", d.Sync.DebounceInterval)

	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// Validate reports every setting that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if c.DibolSchema == "" {
		errs = append(errs, errors.New("dibol_schema is required"))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	if c.Sync.SaveFolder == "" {
		errs = append(errs, errors.New("sync.save_folder is required"))
	}
	if c.Sync.ArchiveFolder == "" {
		errs = append(errs, errors.New("sync.archive_folder is required"))
	}
	if c.Sync.MaxArchiveFiles < 0 {
		errs = append(errs, fmt.Errorf("sync.max_archive_files must not be negative, got %d", c.Sync.MaxArchiveFiles))
	}
	if c.Sync.FTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sync.ftp_timeout must be positive, got %s", c.Sync.FTPTimeout))
	}
	if c.Sync.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("sync.poll_interval must not be negative, got %s", c.Sync.PollInterval))
	}
	if c.Sync.DebounceInterval < 0 {
		errs = append(errs, fmt.Errorf("sync.debounce_interval must not be negative, got %s", c.Sync.DebounceInterval))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	return errors.Join(errs...)
}
