// Package config loads the flowmesh process configuration from an
// optional YAML file and FLOWMESH_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds the HTTP server settings
type APIConfig struct {
	ListenAddress string        `mapstructure:"listen_address"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	RateLimit     RateLimit     `mapstructure:"rate_limit"`
}

// RateLimit holds API rate limiting settings
type RateLimit struct {
	Enabled bool    `mapstructure:"enabled"`
	Limit   float64 `mapstructure:"limit"` // requests per second
	Burst   int     `mapstructure:"burst"`
}

// DatabaseConfig holds the Postgres connection settings. DSN wins when
// set; otherwise the connection string is built from components.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// BuildDSN returns the effective connection string
func (c DatabaseConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, sslMode)
}

// WorkerConfig holds queue processor settings
type WorkerConfig struct {
	Count         int           `mapstructure:"count"`
	IdleInterval  time.Duration `mapstructure:"idle_interval"`
	ErrorInterval time.Duration `mapstructure:"error_interval"`
}

// CacheConfig holds workflow read cache settings
type CacheConfig struct {
	Type         string        `mapstructure:"type"` // memory | redis
	Size         int           `mapstructure:"size"`
	TTL          time.Duration `mapstructure:"ttl"`
	RedisAddress string        `mapstructure:"redis_address"`
}

// Config holds the complete application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	configFile := os.Getenv("FLOWMESH_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("FLOWMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is not required if environment variables are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// Validate checks critical configuration settings
func (c *Config) Validate() error {
	if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Port == 0 || c.Database.Database == "") {
		return fmt.Errorf("invalid database configuration: DSN or host/port/database must be provided")
	}
	if c.API.ReadTimeout == 0 || c.API.WriteTimeout == 0 || c.API.IdleTimeout == 0 {
		return fmt.Errorf("invalid API timeouts: must be greater than 0")
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.listen_address", ":8080")
	v.SetDefault("api.read_timeout", 30*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)
	v.SetDefault("api.idle_timeout", 90*time.Second)
	v.SetDefault("api.rate_limit.enabled", false)
	v.SetDefault("api.rate_limit.limit", 100)
	v.SetDefault("api.rate_limit.burst", 150)

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Worker defaults
	v.SetDefault("worker.count", 1)
	v.SetDefault("worker.idle_interval", 1*time.Second)
	v.SetDefault("worker.error_interval", 5*time.Second)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.size", 1000)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.redis_address", "localhost:6379")
}
