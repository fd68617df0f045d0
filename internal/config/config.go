package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gatepass/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Venue         VenueConfig         `yaml:"venue"`
	Sweeper       SweeperConfig       `yaml:"sweeper"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port      int             `yaml:"port"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type AuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type GatewayConfig struct {
	KeyID          string `yaml:"key_id"`
	KeySecret      string `yaml:"key_secret"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

type VenueConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location resolves the venue timezone; ticket expiry is computed in it.
func (v VenueConfig) Location() (*time.Location, error) {
	return time.LoadLocation(v.Timezone)
}

type SweeperConfig struct {
	IntervalSeconds   int `yaml:"interval_seconds"`
	AbandonAfterHours int `yaml:"abandon_after_hours"`
}

func (s SweeperConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

func (s SweeperConfig) AbandonAfter() time.Duration {
	return time.Duration(s.AbandonAfterHours) * time.Hour
}

type NotificationsConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxRetries int  `yaml:"max_retries"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Substitute environment variables before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Gateway.KeyID == "" || c.Gateway.KeySecret == "" {
		return errors.New("gateway key_id and key_secret are required")
	}
	if c.Gateway.BaseURL == "" {
		return errors.New("gateway base_url is required")
	}
	if _, err := c.Venue.Location(); err != nil {
		return fmt.Errorf("invalid venue timezone %q: %w", c.Venue.Timezone, err)
	}
	if c.Server.Auth.Enabled && len(c.Server.Auth.APIKeys) == 0 {
		return errors.New("auth is enabled but no api keys are configured")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Auth.HeaderAPIKey == "" {
		c.Server.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Gateway.TimeoutSeconds == 0 {
		c.Gateway.TimeoutSeconds = 10
	}
	if c.Venue.Timezone == "" {
		c.Venue.Timezone = models.DefaultVenueTimezone
	}
	if c.Sweeper.IntervalSeconds == 0 {
		c.Sweeper.IntervalSeconds = 60
	}
	if c.Sweeper.AbandonAfterHours == 0 {
		c.Sweeper.AbandonAfterHours = 24
	}
	if c.Notifications.MaxRetries == 0 {
		c.Notifications.MaxRetries = 5
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}
