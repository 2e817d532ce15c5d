package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Queue    QueueConfig    `yaml:"queue"`
	Worker   WorkerConfig   `yaml:"worker"`
	Push     PushConfig     `yaml:"push"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      BrokerQueue      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// BrokerQueue holds RabbitMQ queue configuration
type BrokerQueue struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// QueueConfig holds job queue retry and scheduling configuration
type QueueConfig struct {
	DefaultMaxAttempts int           `yaml:"default_max_attempts"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	PollBatchSize      int           `yaml:"poll_batch_size"`
	LeaseTimeout       time.Duration `yaml:"lease_timeout"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// PushConfig holds push delivery configuration
type PushConfig struct {
	Enabled        bool          `yaml:"enabled"`
	FCMProjectID   string        `yaml:"fcm_project_id"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// envOverrides are applied on top of the YAML file so credentials can stay
// out of version-controlled configs.
type envOverrides struct {
	DatabaseHost     string `env:"DATABASE_HOST"`
	DatabasePassword string `env:"DATABASE_PASSWORD"`
	RabbitMQHost     string `env:"RABBITMQ_HOST"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD"`
	FCMProjectID     string `env:"FCM_PROJECT_ID"`
	LogLevel         string `env:"LOG_LEVEL"`
}

// Load reads the configuration file and applies environment overrides.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}
	config.applyOverrides(&overrides)
	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyOverrides(o *envOverrides) {
	if o.DatabaseHost != "" {
		c.Database.Host = o.DatabaseHost
	}
	if o.DatabasePassword != "" {
		c.Database.Password = o.DatabasePassword
	}
	if o.RabbitMQHost != "" {
		c.RabbitMQ.Host = o.RabbitMQHost
	}
	if o.RabbitMQPassword != "" {
		c.RabbitMQ.Password = o.RabbitMQPassword
	}
	if o.FCMProjectID != "" {
		c.Push.FCMProjectID = o.FCMProjectID
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
}

func (c *Config) applyDefaults() {
	if c.Queue.DefaultMaxAttempts <= 0 {
		c.Queue.DefaultMaxAttempts = 3
	}
	if c.Queue.RetryBaseDelay <= 0 {
		c.Queue.RetryBaseDelay = time.Second
	}
	if c.Queue.PollInterval <= 0 {
		c.Queue.PollInterval = 5 * time.Second
	}
	if c.Queue.PollBatchSize <= 0 {
		c.Queue.PollBatchSize = 100
	}
	if c.Queue.LeaseTimeout <= 0 {
		c.Queue.LeaseTimeout = 5 * time.Minute
	}
}

// ValidateAPIConfig checks the configuration for the API service.
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}
	return c.validateShared()
}

// ValidateWorkerConfig checks the configuration for the worker service.
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval >= c.Queue.LeaseTimeout {
		return fmt.Errorf("worker heartbeat_interval must be shorter than queue lease_timeout")
	}

	return c.validateShared()
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
