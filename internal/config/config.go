// Package config loads and validates the updraft server configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Build     BuildConfig     `yaml:"build"`
	Events    EventsConfig    `yaml:"events"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port"`
	// PublicURL is the externally reachable base URL handed to executors for
	// callbacks. Defaults to http://<host>:<port>.
	PublicURL string `yaml:"public_url,omitempty"`
}

// StorageConfig holds metadata and blob store locations.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	BlobPath     string `yaml:"blob_path"`
}

// ExecutorConfig selects and configures the build executor variant.
type ExecutorConfig struct {
	// Type is "http" or "script".
	Type     string   `yaml:"type"`
	Endpoint string   `yaml:"endpoint,omitempty"` // http executor
	Command  string   `yaml:"command,omitempty"`  // script executor
	Args     []string `yaml:"args,omitempty"`
}

// BuildConfig holds build lifecycle settings.
type BuildConfig struct {
	TimeoutMinutes int `yaml:"timeout_minutes"`
}

// EventsConfig configures the optional NATS event publisher.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
}

// RetentionConfig configures the scheduled cleanup of old terminal builds.
type RetentionConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxAgeDays    int  `yaml:"max_age_days"`
	IntervalHours int  `yaml:"interval_hours"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Load loads configuration from the specified file, applies defaults and
// environment overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)
	applyEnvOverrides(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.PublicURL == "" {
		host := c.Server.Host
		if host == "" {
			host = "localhost"
		}
		c.Server.PublicURL = fmt.Sprintf("http://%s:%d", host, c.Server.Port)
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = ".updraft/updraft.db"
	}
	if c.Storage.BlobPath == "" {
		c.Storage.BlobPath = ".updraft/blobs"
	}
	if c.Executor.Type == "" {
		c.Executor.Type = "script"
	}
	if c.Build.TimeoutMinutes == 0 {
		c.Build.TimeoutMinutes = 15
	}
	if c.Retention.MaxAgeDays == 0 {
		c.Retention.MaxAgeDays = 30
	}
	if c.Retention.IntervalHours == 0 {
		c.Retention.IntervalHours = 24
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the configuration for inconsistencies that would only
// surface later at dispatch or serve time.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Executor.Type {
	case "http":
		if c.Executor.Endpoint == "" {
			return fmt.Errorf("executor type http requires an endpoint")
		}
	case "script":
		if c.Executor.Command == "" {
			return fmt.Errorf("executor type script requires a command")
		}
	default:
		return fmt.Errorf("unknown executor type: %s", c.Executor.Type)
	}
	if c.Build.TimeoutMinutes < 1 {
		return fmt.Errorf("build timeout must be at least one minute")
	}
	if c.Retention.Enabled && c.Retention.MaxAgeDays < 1 {
		return fmt.Errorf("retention max_age_days must be at least 1")
	}
	return nil
}

const defaultConfigContent = `# updraft server configuration
server:
  port: 3000
  # public_url: https://updates.example.com

storage:
  database_path: .updraft/updraft.db
  blob_path: .updraft/blobs

executor:
  type: script
  command: ./scripts/build.sh
  # type: http
  # endpoint: http://builder.internal:4000/jobs

build:
  timeout_minutes: 15

# events:
#   nats_url: nats://localhost:4222

retention:
  enabled: false
  max_age_days: 30
  interval_hours: 24

logging:
  level: info
  format: text
`

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfigContent), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
