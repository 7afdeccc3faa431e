package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting of the console server. Values come from
// waconsole.yaml, WACONSOLE_* environment variables and built-in defaults, in
// that order of precedence.
type Config struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Debug         bool          `mapstructure:"debug"`
	EnableCORS    bool          `mapstructure:"enable_cors"`
	LogLevel      string        `mapstructure:"log_level"`
	GracePeriod   time.Duration `mapstructure:"grace_period"`
	ScriptTimeout time.Duration `mapstructure:"script_timeout"`

	CredentialDir   string        `mapstructure:"credential_dir"`
	CredentialTTL   time.Duration `mapstructure:"credential_ttl"`
	CredentialSweep time.Duration `mapstructure:"credential_sweep_interval"`
}

// Load reads configuration from the usual locations. A missing config file is
// not an error; defaults and environment variables still apply.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("waconsole")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	v.SetEnvPrefix("WACONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("debug", false)
	v.SetDefault("enable_cors", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("grace_period", 5*time.Minute)
	v.SetDefault("script_timeout", 30*time.Second)
	v.SetDefault("credential_dir", defaultCredentialDir())
	v.SetDefault("credential_ttl", 30*24*time.Hour)
	v.SetDefault("credential_sweep_interval", time.Hour)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func defaultCredentialDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".waconsole-credentials"
	}
	return filepath.Join(home, ".waconsole-credentials")
}
