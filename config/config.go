package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Configuration holds everything the adapter and its diagnostic server read
// at startup. The adapter treats it as read-only.
type Configuration struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	BidderCode     string  `mapstructure:"bidder_code"`
	DefaultTimeout uint64  `mapstructure:"default_timeout_ms"`
	Nexage         Nexage  `mapstructure:"nexage"`
	HTTP           HTTP    `mapstructure:"http"`
	Metrics        Metrics `mapstructure:"metrics"`
}

// Nexage holds the Nexage protocol endpoint settings. The host configured
// here is the default; a per-request host param still overrides it.
type Nexage struct {
	Host string `mapstructure:"host"`
}

// HTTP mirrors the knobs of net/http.Transport used by the wire transport.
type HTTP struct {
	MaxConns          int `mapstructure:"max_connections"`
	MaxConnsPerHost   int `mapstructure:"max_connections_per_host"`
	IdleConnTimeoutMS int `mapstructure:"idle_connection_timeout_ms"`
}

// Metrics names the registry prefix used for the adapter meters.
type Metrics struct {
	Prefix string `mapstructure:"prefix"`
}

func (cfg *Configuration) validate() error {
	if cfg.BidderCode == "" {
		return fmt.Errorf("config: bidder_code must not be empty")
	}
	if cfg.Nexage.Host == "" {
		return fmt.Errorf("config: nexage.host must not be empty")
	}
	return nil
}

// IdleConnTimeout returns the configured idle connection timeout as a Duration.
func (cfg *Configuration) IdleConnTimeout() time.Duration {
	return time.Duration(cfg.HTTP.IdleConnTimeoutMS) * time.Millisecond
}

// TimeoutDuration returns the default per-auction timeout as a Duration.
func (cfg *Configuration) TimeoutDuration() time.Duration {
	return time.Duration(cfg.DefaultTimeout) * time.Millisecond
}

// New uses viper to build our configuration.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// SetupViper sets the default config values and wires up config file lookup.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("host", "")
	v.SetDefault("port", 8000)
	v.SetDefault("bidder_code", "aol")
	v.SetDefault("default_timeout_ms", 250)
	v.SetDefault("nexage.host", "hb.nexage.com")
	v.SetDefault("http.max_connections", 50)
	v.SetDefault("http.max_connections_per_host", 10)
	v.SetDefault("http.idle_connection_timeout_ms", 60000)
	v.SetDefault("metrics.prefix", "adapter")

	v.SetEnvPrefix("RTB_ADAPTER")
	v.AutomaticEnv()
	v.ReadInConfig()
}
