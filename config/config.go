// Package config loads settings from defaults, an optional config.yaml,
// a .env file and WTRACK_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "WTRACK"

type Config struct {
	DataDir        string `mapstructure:"data_dir"`
	DBFile         string `mapstructure:"db_file"`
	ReportFile     string `mapstructure:"report_file"`
	DBDriver       string `mapstructure:"db_driver"`
	PollIntervalMs int    `mapstructure:"poll_interval_ms"`
	FinalizeOnStop bool   `mapstructure:"finalize_on_stop"`
	ListenAddr     string `mapstructure:"listen_addr"`
	LogLevel       string `mapstructure:"log_level"`
	LogFile        string `mapstructure:"log_file"`
	LogMaxSizeMB   int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups  int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays  int    `mapstructure:"log_max_age_days"`
}

// DefaultDataDir is ~/Documents/WindowTracker.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "WindowTracker"
	}
	return filepath.Join(home, "Documents", "WindowTracker")
}

// Load reads the configuration. configFile may be empty, in which case
// config.yaml is searched in the working directory and ~/.windowtracker.
func Load(configFile string) (*Config, error) {
	// un .env absent n'est pas une erreur
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.windowtracker")
	}

	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("db_file", "WindowLog.db")
	v.SetDefault("report_file", "WindowLog.html")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("poll_interval_ms", 500)
	v.SetDefault("finalize_on_stop", false)
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", filepath.Join("logs", "windowtracker.log"))
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 5)
	v.SetDefault("log_max_age_days", 30)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

func (c *Config) DBPath() string {
	return c.resolve(c.DBFile)
}

func (c *Config) ReportPath() string {
	return c.resolve(c.ReportFile)
}

func (c *Config) LogPath() string {
	return c.resolve(c.LogFile)
}
