package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is read from RESELLERKIT_* environment variables and an optional
// .env file. Command-line flags override it.
type Config struct {
	AuthUserID   string        `mapstructure:"AUTH_USERID"`
	APIKey       string        `mapstructure:"API_KEY"`
	BaseURL      string        `mapstructure:"BASE_URL"`
	Timeout      time.Duration `mapstructure:"TIMEOUT"`
	CacheTTL     time.Duration `mapstructure:"CACHE_TTL"`
	Currency     string        `mapstructure:"CURRENCY"`
	PromoPricing bool          `mapstructure:"PROMO_PRICING"`
	LogLevel     string        `mapstructure:"LOG_LEVEL"`
	LogFormat    string        `mapstructure:"LOG_FORMAT"`
	ListenAddr   string        `mapstructure:"LISTEN_ADDR"`
}

var keys = []string{
	"AUTH_USERID", "API_KEY", "BASE_URL", "TIMEOUT", "CACHE_TTL", "CURRENCY",
	"PROMO_PRICING", "LOG_LEVEL", "LOG_FORMAT", "LISTEN_ADDR",
}

// Load reads configuration. envFile may be empty to skip the .env lookup.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetDefault("BASE_URL", "https://httpapi.com/api")
	v.SetDefault("TIMEOUT", 30*time.Second)
	v.SetDefault("CACHE_TTL", 5*time.Minute)
	v.SetDefault("CURRENCY", "INR")
	v.SetDefault("PROMO_PRICING", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LISTEN_ADDR", ":8080")

	v.SetEnvPrefix("RESELLERKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys viper already knows about.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			// A missing .env is fine; a malformed one is not.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", envFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
