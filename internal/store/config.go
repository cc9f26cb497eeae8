package store

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode       string `yaml:"mode"`
	ListenAddr string `yaml:"listen_addr"`

	Broker struct {
		ID       int    `yaml:"id"`
		BaseURL  string `yaml:"base_url"`
		DNI      string `yaml:"-"`
		User     string `yaml:"-"`
		Password string `yaml:"-"`
	} `yaml:"broker"`

	ReconnectIntervalSeconds   int `yaml:"reconnect_interval_seconds"`
	MaxReconnectAttempts       int `yaml:"max_reconnect_attempts"`
	HealthCheckIntervalSeconds int `yaml:"health_check_interval_seconds"`
	StaleAfterMinutes          int `yaml:"stale_after_minutes"`

	TickersFile string `yaml:"tickers_file"`

	History struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"history"`
}

func (c *Config) Validate() error {
	if c.Mode != "SIM" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'SIM' or 'LIVE'", c.Mode)
	}
	if c.ReconnectIntervalSeconds <= 0 {
		return fmt.Errorf("reconnect_interval_seconds must be positive, got %d", c.ReconnectIntervalSeconds)
	}
	if c.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("max_reconnect_attempts must be positive, got %d", c.MaxReconnectAttempts)
	}
	if c.HealthCheckIntervalSeconds <= 0 {
		return fmt.Errorf("health_check_interval_seconds must be positive, got %d", c.HealthCheckIntervalSeconds)
	}
	if c.Mode == "LIVE" && (c.Broker.DNI == "" || c.Broker.User == "" || c.Broker.Password == "") {
		return fmt.Errorf("LIVE mode requires HB_DNI, HB_USER and HB_PASSWORD")
	}
	return nil
}

// LoadConfig reads the YAML config file and applies environment overrides.
// Credentials come from the environment only and are never written to disk.
func LoadConfig(path string) (*Config, error) {
	var c Config

	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyDefaults(&c)
	applyEnvOverrides(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Mode == "" {
		c.Mode = "SIM"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8000"
	}
	if c.ReconnectIntervalSeconds == 0 {
		c.ReconnectIntervalSeconds = 30
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.HealthCheckIntervalSeconds == 0 {
		c.HealthCheckIntervalSeconds = 60
	}
	if c.StaleAfterMinutes == 0 {
		c.StaleAfterMinutes = 5
	}
	if c.TickersFile == "" {
		c.TickersFile = "tickers.json"
	}
	if c.History.RequestsPerSecond == 0 {
		c.History.RequestsPerSecond = 2
	}
	if c.History.Burst == 0 {
		c.History.Burst = 4
	}
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("HB_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("HB_BROKER"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			c.Broker.ID = id
		}
	}
	c.Broker.DNI = os.Getenv("HB_DNI")
	c.Broker.User = os.Getenv("HB_USER")
	c.Broker.Password = os.Getenv("HB_PASSWORD")

	if v := os.Getenv("HB_RECONNECT_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ReconnectIntervalSeconds = n
		}
	}
	if v := os.Getenv("HB_MAX_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxReconnectAttempts = n
		}
	}
	if v := os.Getenv("HB_HEALTH_CHECK_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HealthCheckIntervalSeconds = n
		}
	}
	if v := os.Getenv("HB_TICKERS_FILE"); v != "" {
		c.TickersFile = v
	}
	if v := os.Getenv("HB_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
}
