// Package config loads application configuration through viper, with .env
// support for local development. The core pipeline treats everything here as
// plain input parameters; where these values live (file, env, flags) is not
// its concern.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Gemini    Gemini    `mapstructure:"gemini"`
	Discovery Discovery `mapstructure:"discovery"`
	Analysis  Analysis  `mapstructure:"analysis"`
	Data      Data      `mapstructure:"data"`
	Schedule  Schedule  `mapstructure:"schedule"`
	Logging   Logging   `mapstructure:"logging"`
}

// Gemini holds the text-generation provider configuration.
type Gemini struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     string  `mapstructure:"timeout"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// Discovery holds the ingestion-run policy knobs.
type Discovery struct {
	MinScore             float64 `mapstructure:"min_score"`
	MaxResults           int     `mapstructure:"max_results"`
	RecencyDays          int     `mapstructure:"recency_days"`
	PromptTemplate       string  `mapstructure:"prompt_template"`
	IncludeTaxonomy      bool    `mapstructure:"include_taxonomy"`
	InlineClassification bool    `mapstructure:"inline_classification"`
}

// Analysis holds the backlog-analysis knobs.
type Analysis struct {
	BatchSize  int    `mapstructure:"batch_size"`
	BatchPause string `mapstructure:"batch_pause"`
	Limit      int    `mapstructure:"limit"`
	Model      string `mapstructure:"model"`
}

// Data holds storage locations.
type Data struct {
	Dir string `mapstructure:"dir"`
}

// Schedule holds the cron expression for scheduled discovery runs.
type Schedule struct {
	Cron string `mapstructure:"cron"`
}

// Logging holds logging configuration.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file (or the default search
// paths), after loading a .env file if one is present.
func Load(cfgFile string) (*Config, error) {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".newsradar")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("NEWSRADAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" {
			// An explicit config file must exist and parse.
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file found in the search paths: defaults + env apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Data.Dir == "" {
		cfg.Data.Dir = defaultDataDir()
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("gemini.model", "gemini-1.5-flash-latest")
	viper.SetDefault("gemini.timeout", "60s")
	viper.SetDefault("gemini.max_tokens", 4000)
	viper.SetDefault("gemini.temperature", 0.3)

	viper.SetDefault("discovery.min_score", 0.6)
	viper.SetDefault("discovery.max_results", 10)
	viper.SetDefault("discovery.recency_days", 7)
	viper.SetDefault("discovery.include_taxonomy", true)
	viper.SetDefault("discovery.inline_classification", true)

	viper.SetDefault("analysis.batch_size", 5)
	viper.SetDefault("analysis.batch_pause", "2s")
	viper.SetDefault("analysis.limit", 50)

	viper.SetDefault("schedule.cron", "0 6 * * *")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// BatchPauseDuration parses the configured pause, falling back to 2s.
func (a Analysis) BatchPauseDuration() time.Duration {
	if d, err := time.ParseDuration(a.BatchPause); err == nil {
		return d
	}
	return 2 * time.Second
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".newsradar-data"
	}
	return filepath.Join(home, ".newsradar")
}
