package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the Store server
type Config struct {
	// Storage
	DataBackend string
	DataFile    string
	DatabaseURL string

	// Server
	Port        string
	CORSOrigins []string
	Env         string

	// Rate limiting
	RateLimitPerMinute int
	RateLimitBurst     int

	// AMQP change feed, disabled when URL is empty
	AMQPURL      string
	AMQPExchange string
}

// ClientConfig holds configuration for the command line client
type ClientConfig struct {
	APIURL         string
	Categories     []string
	BudgetFile     string
	CurrencySymbol string

	// S3 backups
	S3 S3Config
}

// S3Config holds AWS S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO/LocalStack local dev
}

// Load reads server configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	rateLimit, err := getEnvInt("RATE_LIMIT_PER_MINUTE", 100)
	if err != nil {
		return nil, err
	}
	burst, err := getEnvInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataBackend:        strings.ToLower(getEnv("DATA_BACKEND", BackendFile)),
		DataFile:           getEnv("DATA_FILE", "data.json"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		Port:               getEnv("PORT", "3000"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
		Env:                getEnv("ENV", "development"),
		RateLimitPerMinute: rateLimit,
		RateLimitBurst:     burst,
		AMQPURL:            getEnv("AMQP_URL", ""),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "spendbook"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DataBackend {
	case BackendFile:
		if c.DataFile == "" {
			return fmt.Errorf("DATA_FILE is required")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATA_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("DATA_BACKEND must be %q or %q, got %q", BackendFile, BackendPostgres, c.DataBackend)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// LoadClient reads client configuration from environment variables
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	budgetFile := getEnv("BUDGET_FILE", "")
	if budgetFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("BUDGET_FILE is not set and no user config dir: %w", err)
		}
		budgetFile = filepath.Join(dir, "spendbook", "budget.json")
	}

	cfg := &ClientConfig{
		APIURL:         strings.TrimRight(getEnv("API_URL", "http://localhost:3000"), "/"),
		Categories:     splitList(getEnv("CATEGORIES", "Food,Transport,Bills,Shopping,Entertainment,Health,Other")),
		BudgetFile:     budgetFile,
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "₹"),
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Empty = use AWS, set for MinIO/LocalStack
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *ClientConfig) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("API_URL is required")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("CATEGORIES must name at least one category")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func splitList(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
