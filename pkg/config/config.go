// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Redis, Postgres, Kafka, Build, Search, Server, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Build    BuildConfig    `yaml:"build"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP settings for the query service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// RedisConfig holds Redis connection parameters. Databases maps each index
// namespace (keywords, abstracts, titles, chemicals, authors, metadata) to
// the logical Redis database that stores it.
type RedisConfig struct {
	Addr      string         `yaml:"addr"`
	Password  string         `yaml:"password"`
	PoolSize  int            `yaml:"poolSize"`
	Databases map[string]int `yaml:"databases"`
}

// PostgresConfig holds PostgreSQL connection parameters for the indexing
// ledger. The ledger is only used when Enabled is set.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Documents string `yaml:"documents"`
}

// BuildConfig controls document acquisition and the indexing pipeline.
type BuildConfig struct {
	BaselineURL     string        `yaml:"baselineUrl"`
	MaxFiles        int           `yaml:"maxFiles"`
	FilesOffset     int           `yaml:"filesOffset"`
	TaskTimeout     time.Duration `yaml:"taskTimeout"`
	ProgressEvery   int           `yaml:"progressEvery"`
	CrossRefs       bool          `yaml:"crossRefs"`
	CrossRefTimeout time.Duration `yaml:"crossRefTimeout"`
	EUtilsURL       string        `yaml:"eutilsUrl"`
	EUtilsAPIKey    string        `yaml:"eutilsApiKey"`
	FetchTimeout    time.Duration `yaml:"fetchTimeout"`
	Retry           RetryConfig   `yaml:"retry"`
}

// RetryConfig mirrors resilience.RetryConfig for YAML loading.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// SearchConfig controls query execution limits and output.
type SearchConfig struct {
	TopK            int           `yaml:"topK"`
	TimeoutPerIndex time.Duration `yaml:"timeoutPerIndex"`
	ReportPath      string        `yaml:"reportPath"`
	CacheSize       int           `yaml:"cacheSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.topK must be positive, got %d", c.Search.TopK)
	}
	if c.Build.MaxFiles < 0 || c.Build.FilesOffset < 0 {
		return fmt.Errorf("build.maxFiles and build.filesOffset must not be negative")
	}
	// a lookup must leave the metadata task time to store its result
	if c.Build.CrossRefs && c.Build.TaskTimeout > 0 &&
		(c.Build.CrossRefTimeout <= 0 || c.Build.CrossRefTimeout >= c.Build.TaskTimeout) {
		return fmt.Errorf("build.crossRefTimeout (%v) must be positive and below build.taskTimeout (%v)",
			c.Build.CrossRefTimeout, c.Build.TaskTimeout)
	}
	seen := make(map[int]string, len(c.Redis.Databases))
	for name, db := range c.Redis.Databases {
		if other, ok := seen[db]; ok {
			return fmt.Errorf("redis databases %q and %q share db %d", name, other, db)
		}
		seen[db] = name
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			Databases: map[string]int{
				"keywords":  0,
				"abstracts": 1,
				"titles":    2,
				"chemicals": 3,
				"metadata":  4,
				"authors":   5,
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "pubmedsearch",
			User:            "pubmedsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "pubmedsearch-indexer",
			Topics: KafkaTopics{
				Documents: "pubmed-documents",
			},
		},
		Build: BuildConfig{
			BaselineURL:     "https://ftp.ncbi.nlm.nih.gov/pubmed/baseline/",
			TaskTimeout:     30 * time.Second,
			ProgressEvery:   100,
			CrossRefTimeout: 20 * time.Second,
			EUtilsURL:       "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/",
			FetchTimeout:    5 * time.Minute,
			Retry: RetryConfig{
				MaxAttempts:  5,
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     30 * time.Second,
			},
		},
		Search: SearchConfig{
			TopK:            30,
			TimeoutPerIndex: 10 * time.Second,
			ReportPath:      "report.json",
			CacheSize:       256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads PS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PS_POSTGRES_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = enabled
		}
	}
	if v := os.Getenv("PS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PS_BUILD_BASELINE_URL"); v != "" {
		cfg.Build.BaselineURL = v
	}
	if v := os.Getenv("PS_EUTILS_API_KEY"); v != "" {
		cfg.Build.EUtilsAPIKey = v
	}
	if v := os.Getenv("PS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PS_SEARCH_REPORT_PATH"); v != "" {
		cfg.Search.ReportPath = v
	}
}
