package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"school-journal/pkg/errors"
)

const (
	DriverREST   = "rest"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Redis   RedisConfig   `yaml:"redis"`
	Storage StorageConfig `yaml:"storage"`
	Journal JournalConfig `yaml:"journal"`
	Workers WorkersConfig `yaml:"workers"`
	Logging LoggingConfig `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the backend the Remote Sync Gateway talks to.
type StoreConfig struct {
	Driver string         `yaml:"driver"`
	REST   RESTConfig     `yaml:"rest"`
	MySQL  DatabaseConfig `yaml:"mysql"`
}

// RESTConfig describes a hosted relational data service reached over HTTP.
type RESTConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	AuthEndpoint string        `yaml:"auth_endpoint"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Timeout      time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	Charset            string        `yaml:"charset"`
	ParseTime          bool          `yaml:"parse_time"`
	Loc                string        `yaml:"loc"`
	MaxConnections     int           `yaml:"max_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections"`
	ConnectionLifetime time.Duration `yaml:"connection_lifetime"`
}

type RedisConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	PoolSize    int    `yaml:"pool_size"`
	ImportQueue string `yaml:"import_queue"`
	DLQSuffix   string `yaml:"dlq_suffix"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	UseSSL       bool   `yaml:"use_ssl"`
	ExportPrefix string `yaml:"export_prefix"`
}

// JournalConfig tunes the in-memory journal engine.
type JournalConfig struct {
	SearchDebounce time.Duration `yaml:"search_debounce"`
	MarkerWindow   time.Duration `yaml:"marker_window"`
	DefaultStatus  string        `yaml:"default_status"`
}

type WorkersConfig struct {
	Import ImportWorkerConfig `yaml:"import"`
}

type ImportWorkerConfig struct {
	Count int `yaml:"count"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a yaml document, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Defaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Defaults fills in zero values.
func (c *Config) Defaults() {
	if c.App.Name == "" {
		c.App.Name = "school-journal"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.Store.REST.AuthEndpoint == "" {
		c.Store.REST.AuthEndpoint = "/auth/v1/token?grant_type=password"
	}
	if c.Store.REST.Timeout == 0 {
		c.Store.REST.Timeout = 30 * time.Second
	}
	if c.Store.MySQL.Charset == "" {
		c.Store.MySQL.Charset = "utf8mb4"
	}
	if c.Store.MySQL.Loc == "" {
		c.Store.MySQL.Loc = "UTC"
	}
	if c.Redis.ImportQueue == "" {
		c.Redis.ImportQueue = "journal:imports"
	}
	if c.Redis.DLQSuffix == "" {
		c.Redis.DLQSuffix = ":dlq"
	}
	if c.Storage.S3.ExportPrefix == "" {
		c.Storage.S3.ExportPrefix = "exports/"
	}
	if c.Journal.SearchDebounce == 0 {
		c.Journal.SearchDebounce = 300 * time.Millisecond
	}
	if c.Journal.MarkerWindow == 0 {
		c.Journal.MarkerWindow = 3 * time.Second
	}
	if c.Journal.DefaultStatus == "" {
		c.Journal.DefaultStatus = "absent"
	}
	if c.Workers.Import.Count == 0 {
		c.Workers.Import.Count = 2
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverREST:
		if c.Store.REST.BaseURL == "" {
			return errors.ValidationError{Field: "store.rest.base_url", Value: "", Message: "required for the rest driver"}
		}
	case DriverMySQL, DriverMemory:
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnsupportedStoreDriver, c.Store.Driver)
	}

	if c.Journal.SearchDebounce < 0 || c.Journal.MarkerWindow < 0 {
		return errors.ValidationError{Field: "journal", Value: c.Journal, Message: "durations must not be negative"}
	}

	return nil
}

// MySQL DSN format: [username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		c.Store.MySQL.User, c.Store.MySQL.Password, c.Store.MySQL.Host, c.Store.MySQL.Port,
		c.Store.MySQL.Name, c.Store.MySQL.Charset, c.Store.MySQL.ParseTime, c.Store.MySQL.Loc)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// StorageEnabled reports whether an S3 bucket is configured.
func (c *Config) StorageEnabled() bool {
	return c.Storage.S3.Bucket != ""
}

// QueueEnabled reports whether a Redis host is configured for import jobs.
func (c *Config) QueueEnabled() bool {
	return c.Redis.Host != ""
}
