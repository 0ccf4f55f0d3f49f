// Package config loads the daemon configuration from a YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration surface. Defaults mirror the values
// the daemon is normally deployed with; only the identity and mailbox
// settings are mandatory.
type Config struct {
	IdentityHost string `mapstructure:"identity_host"`
	GraphHost    string `mapstructure:"graph_host"`
	Tenant       string `mapstructure:"tenant"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Mailbox      string `mapstructure:"mailbox"`

	// Keyword selects which unread messages trigger the relay. Empty
	// means every unread message triggers.
	Keyword string `mapstructure:"keyword"`

	PollInterval       time.Duration `mapstructure:"poll_interval"`
	RelayOnDuration    time.Duration `mapstructure:"relay_on_duration"`
	RelayCheckInterval time.Duration `mapstructure:"relay_check_interval"`
	StartupSettle      time.Duration `mapstructure:"startup_settle"`
	SelfTestPulse      time.Duration `mapstructure:"self_test_pulse"`
	Tick               time.Duration `mapstructure:"tick"`

	GPIOPin string `mapstructure:"gpio_pin"`
}

// Load reads the config file at path and applies defaults for any
// missing keys.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("identity_host", "login.microsoftonline.com")
	v.SetDefault("graph_host", "graph.microsoft.com")
	v.SetDefault("keyword", "")
	v.SetDefault("poll_interval", "5m")
	v.SetDefault("relay_on_duration", "3m")
	v.SetDefault("relay_check_interval", "10s")
	v.SetDefault("startup_settle", "30s")
	v.SetDefault("self_test_pulse", "1s")
	v.SetDefault("tick", "1s")
	v.SetDefault("gpio_pin", "GPIO17")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports missing mandatory settings.
func (c *Config) Validate() error {
	var missing []string
	if c.Tenant == "" {
		missing = append(missing, "tenant")
	}
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.Mailbox == "" {
		missing = append(missing, "mailbox")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
