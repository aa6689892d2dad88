package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "TABLEFILL"

type Config struct {
	TargetsDir   string  `mapstructure:"targets_dir"`
	SchemaDir    string  `mapstructure:"schema_dir"`
	RunsDBPath   string  `mapstructure:"runs_db"`
	LogLevel     string  `mapstructure:"log_level"`
	Locale       string  `mapstructure:"locale"`
	BatchSize    int     `mapstructure:"batch_size"`
	DefaultRows  int64   `mapstructure:"default_rows"`
	NullRate     float64 `mapstructure:"null_rate"`
	RulesFile    string  `mapstructure:"rules_file"`
	DateWindow   string  `mapstructure:"date_window"`
	RecentWindow string  `mapstructure:"recent_window"`
	BindAddr     string  `mapstructure:"bind_addr"`
}

var defaults = map[string]interface{}{
	"targets_dir":   "./targets",
	"schema_dir":    ".",
	"runs_db":       "./tablefill-runs.sqlite",
	"log_level":     "info",
	"locale":        "au",
	"batch_size":    1000,
	"default_rows":  10,
	"null_rate":     0.0,
	"rules_file":    "",
	"date_window":   "-1y",
	"recent_window": "-90d",
	"bind_addr":     "127.0.0.1:8080",
}

// Load reads .env, then an optional config file, then TABLEFILL_* variables.
// Later sources win. An empty path looks for tablefill.yaml in the working
// directory and ignores its absence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("tablefill")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch_size must be positive: %d", cfg.BatchSize)
	}
	if cfg.NullRate < 0 || cfg.NullRate > 1 {
		return nil, fmt.Errorf("null_rate must be within [0, 1]: %v", cfg.NullRate)
	}
	return &cfg, nil
}
