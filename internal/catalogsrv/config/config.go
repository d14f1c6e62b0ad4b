// Package config loads and validates the catalog service configuration from a
// TOML file, with database credentials optionally supplied through the
// environment (a .env file is honored if present).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// MirrorConfig holds settings for external catalog synchronization.
type MirrorConfig struct {
	ApiUrl      string `toml:"api_url"`      // Base URL of the external registry API
	Username    string `toml:"username"`     // Basic-auth username
	Password    string `toml:"-"`            // Basic-auth password, from DATAPUB_MIRROR_PASSWORD
	DoiPrefix   string `toml:"doi_prefix"`   // DOI prefix owned by this deployment
	MaxAttempts uint   `toml:"max_attempts"` // Retry attempts per record before marking pending
	RetryDelay  string `toml:"retry_delay"`  // Initial backoff delay, e.g. "2s"
}

// GetRetryDelay returns the initial backoff delay as time.Duration.
func (m *MirrorConfig) GetRetryDelay() (time.Duration, error) {
	return time.ParseDuration(m.RetryDelay)
}

// GetRetryDelayOrDefault returns the initial backoff delay, falling back to
// one second if unset or invalid.
func (m *MirrorConfig) GetRetryDelayOrDefault() time.Duration {
	d, err := m.GetRetryDelay()
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// PublishConfig holds settings for the publication pipeline.
type PublishConfig struct {
	Catalogs []string `toml:"catalogs"` // Catalog IDs to run, in order
}

// ConfigParam holds all configuration parameters for the catalog service
type ConfigParam struct {
	FormatVersion string `toml:"format_version"` // Version of this configuration file format

	// Server configuration
	ServerHostName string `toml:"server_hostname"` // Hostname for the server
	ServerPort     string `toml:"server_port"`     // Port for the query API server
	HandleCORS     bool   `toml:"handle_cors"`     // Whether to handle CORS
	RequestTimeout string `toml:"request_timeout"` // Per-request timeout, e.g. "30s"

	// Database configuration
	DB struct {
		Host     string `toml:"host"`     // Database host
		Port     int    `toml:"port"`     // Database port
		DBName   string `toml:"dbname"`   // Database name
		User     string `toml:"user"`     // Database user
		Password string `toml:"-"`        // Database password, from DATAPUB_DB_PASSWORD
		SSLMode  string `toml:"sslmode"`  // SSL mode for database connection
	} `toml:"db"`

	Publish PublishConfig `toml:"publish"`
	Mirror  MirrorConfig  `toml:"mirror"`
}

var cfg *ConfigParam

// Config returns the current configuration
func Config() *ConfigParam {
	return cfg
}

// DSN returns the database connection string
func (c *ConfigParam) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
}

// CatalogDSN returns the DSN for the catalog database
func CatalogDSN() string {
	return cfg.DSN()
}

// GetRequestTimeoutOrDefault returns the per-request timeout, falling back to
// 30 seconds if unset or invalid.
func (c *ConfigParam) GetRequestTimeoutOrDefault() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// LoadConfig reads the TOML config file at the given path, applies secrets
// from the environment, and validates the result.
func LoadConfig(path string) error {
	_ = godotenv.Load()

	c := &ConfigParam{}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("unable to decode config file %s: %w", path, err)
	}

	c.DB.Password = os.Getenv("DATAPUB_DB_PASSWORD")
	c.Mirror.Password = os.Getenv("DATAPUB_MIRROR_PASSWORD")

	if err := ValidateConfig(c); err != nil {
		return err
	}

	cfg = c
	return nil
}

// SetTestConfig installs a configuration directly, for use by tests.
func SetTestConfig(c *ConfigParam) {
	cfg = c
}

// ValidateConfig checks if all required configuration values are present and valid
func ValidateConfig(c *ConfigParam) error {
	if c.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if c.DB.Host == "" || c.DB.DBName == "" || c.DB.User == "" {
		return fmt.Errorf("db host, dbname and user are required")
	}
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if len(c.Publish.Catalogs) == 0 {
		return fmt.Errorf("at least one catalog must be configured under [publish]")
	}
	if c.Mirror.MaxAttempts == 0 {
		c.Mirror.MaxAttempts = 3
	}
	return nil
}
