package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageDynamoDB = "dynamodb"
	StorageMemory   = "memory"
	StorageRemote   = "remote"
)

// DefaultGraphDocumentKey is the path of the shared graph document
const DefaultGraphDocumentKey = "artifacts/default-app-id/public/graphs/graphData"

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"serverAddress"`
	Environment   string `yaml:"environment"`

	// Storage
	StorageBackend   string        `yaml:"storageBackend"`
	GraphDocumentKey string        `yaml:"graphDocumentKey"`
	PollInterval     time.Duration `yaml:"pollInterval"`
	RemoteBaseURL    string        `yaml:"remoteBaseURL"`

	// AWS configuration
	AWSRegion     string `yaml:"awsRegion"`
	DynamoDBTable string `yaml:"tableName"`
	ArticlesTable string `yaml:"articlesTable"`
	EventBusName  string `yaml:"eventBusName"`

	// Circuit breaker around store calls
	BreakerTimeout      time.Duration `yaml:"breakerTimeout"`
	BreakerFailureRatio float64       `yaml:"breakerFailureRatio"`
	BreakerMinRequests  uint32        `yaml:"breakerMinRequests"`

	// Logging
	LogLevel string `yaml:"logLevel"`

	// Feature flags
	EnableMetrics bool   `yaml:"enableMetrics"`
	EnableTracing bool   `yaml:"enableTracing"`
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	EnableCORS    bool   `yaml:"enableCORS"`

	// Config files
	ConfigDir         string `yaml:"-"`
	DynamicConfigPath string `yaml:"-"`

	// LoadedFrom lists the sources applied, lowest priority first
	LoadedFrom []string `yaml:"-"`
}

// defaultConfig returns the in-code defaults
func defaultConfig() *Config {
	return &Config{
		ServerAddress:       ":8080",
		Environment:         "development",
		StorageBackend:      StorageMemory,
		GraphDocumentKey:    DefaultGraphDocumentKey,
		PollInterval:        2 * time.Second,
		AWSRegion:           "us-west-2",
		DynamoDBTable:       "concept-tree",
		ArticlesTable:       "concept-tree-articles",
		EventBusName:        "concept-tree-events",
		BreakerTimeout:      30 * time.Second,
		BreakerFailureRatio: 0.6,
		BreakerMinRequests:  5,
		LogLevel:            "info",
		OTLPEndpoint:        "localhost:4317",
		EnableCORS:          true,
	}
}

// LoadConfig loads configuration from defaults, optional YAML files in
// CONFIG_DIR (base.yaml then <environment>.yaml) and environment variables,
// in increasing priority
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	cfg.LoadedFrom = []string{"defaults"}
	cfg.ConfigDir = getEnv("CONFIG_DIR", "")
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	if cfg.ConfigDir != "" {
		for _, name := range []string{"base", strings.ToLower(cfg.Environment)} {
			path := filepath.Join(cfg.ConfigDir, name+".yaml")
			loaded, err := loadYAMLFile(path, cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
			if loaded {
				cfg.LoadedFrom = append(cfg.LoadedFrom, path)
			}
		}
	}

	cfg.applyEnvironment()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func loadYAMLFile(path string, cfg *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Config) applyEnvironment() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", c.StorageBackend))
	c.GraphDocumentKey = getEnv("GRAPH_DOCUMENT_KEY", c.GraphDocumentKey)
	c.PollInterval = getEnvDuration("POLL_INTERVAL", c.PollInterval)
	c.RemoteBaseURL = getEnv("REMOTE_BASE_URL", c.RemoteBaseURL)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.ArticlesTable = getEnv("ARTICLES_TABLE", c.ArticlesTable)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.BreakerTimeout = getEnvDuration("BREAKER_TIMEOUT", c.BreakerTimeout)
	c.BreakerFailureRatio = getEnvFloat("BREAKER_FAILURE_RATIO", c.BreakerFailureRatio)
	c.BreakerMinRequests = uint32(getEnvInt("BREAKER_MIN_REQUESTS", int(c.BreakerMinRequests)))

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)

	c.DynamicConfigPath = getEnv("DYNAMIC_CONFIG_PATH", c.DynamicConfigPath)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StorageDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb backend")
		}
		if c.ArticlesTable == "" {
			return fmt.Errorf("ARTICLES_TABLE is required for the dynamodb backend")
		}
	case StorageRemote:
		if c.RemoteBaseURL == "" {
			return fmt.Errorf("REMOTE_BASE_URL is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.GraphDocumentKey == "" {
		return fmt.Errorf("GRAPH_DOCUMENT_KEY must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	if c.IsProduction() && c.StorageBackend == StorageMemory {
		return fmt.Errorf("the memory backend is not allowed in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
