package utils

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

var (
	EnvPath string = "."
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverFirebase = "firebase"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	Env                 string        `mapstructure:"ENV"`
	ServerPort          int           `mapstructure:"SERVER_PORT"`
	SigningKey          string        `mapstructure:"SIGNING_KEY"`
	StoreDriver         string        `mapstructure:"STORE_DRIVER"`
	StoreTxRetries      int           `mapstructure:"STORE_TX_RETRIES"`
	FirebaseDatabaseURL string        `mapstructure:"FIREBASE_DATABASE_URL"`
	FirebaseCredentials string        `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	RedisHost           string        `mapstructure:"REDIS_HOST"`
	RedisPort           string        `mapstructure:"REDIS_PORT"`
	RedisPassword       string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int           `mapstructure:"REDIS_DB"`
	DBUsername          string        `mapstructure:"DB_USERNAME"`
	DBPassword          string        `mapstructure:"DB_PASSWORD"`
	DBHost              string        `mapstructure:"DB_HOST"`
	DBPort              string        `mapstructure:"DB_PORT"`
	DBName              string        `mapstructure:"DB_NAME"`
	SSLMode             string        `mapstructure:"SSLMODE"`
	MigrationsPath      string        `mapstructure:"MIGRATIONS_PATH"`
	CacheTTL            time.Duration `mapstructure:"CACHE_TTL"`
	CacheMaxEntries     int           `mapstructure:"CACHE_MAX_ENTRIES"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	Papertrail          string        `mapstructure:"PAPERTRAIL"`
	PapertrailAppName   string        `mapstructure:"PAPERTRAIL_APP_NAME"`
	PushNotifications   bool          `mapstructure:"PUSH_NOTIFICATIONS"`
}

func LoadConfig(path string) (*Config, error) {
	// Validate that the path is not empty
	if path == "" {
		path = "."
	}

	// Create a new Viper instance to avoid global state
	v := viper.New()

	// Disable environment variable prefix
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	setDefaults(v)

	// Configure config file
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Log the error, but don't fail entirely
		log.Printf("Warning: Unable to read config file: %v", err)
	}

	// Create config struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Additional security: Validate critical configurations
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Unmarshal only sees environment variables for keys viper already knows about,
// so every key gets a default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SIGNING_KEY", "")
	v.SetDefault("STORE_DRIVER", StoreDriverMemory)
	v.SetDefault("STORE_TX_RETRIES", 25)
	v.SetDefault("FIREBASE_DATABASE_URL", "")
	v.SetDefault("GOOGLE_APPLICATION_CREDENTIALS", "")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DB_USERNAME", "")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "taskmarket")
	v.SetDefault("SSLMODE", "disable")
	v.SetDefault("MIGRATIONS_PATH", "file://db/migrations")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CACHE_MAX_ENTRIES", 100)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PAPERTRAIL", "")
	v.SetDefault("PAPERTRAIL_APP_NAME", "taskmarket-ledger")
	v.SetDefault("PUSH_NOTIFICATIONS", false)
}

func validateConfig(config *Config) error {
	if config.ServerPort == 0 {
		return fmt.Errorf("server port must be specified")
	}

	if config.SigningKey == "" {
		return fmt.Errorf("signing key must be provided")
	}

	if config.StoreTxRetries <= 0 {
		return fmt.Errorf("store transaction retries must be positive")
	}

	switch config.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverFirebase:
		if config.FirebaseDatabaseURL == "" {
			return fmt.Errorf("firebase database url must be provided")
		}
	case StoreDriverRedis:
		if config.RedisHost == "" || config.RedisPort == "" {
			return fmt.Errorf("redis host and port must be provided")
		}
	case StoreDriverPostgres:
		if config.DBUsername == "" || config.DBPassword == "" {
			return fmt.Errorf("database credentials must be provided")
		}
	default:
		return fmt.Errorf("unknown store driver %q", config.StoreDriver)
	}

	if config.PushNotifications && config.FirebaseCredentials == "" {
		return fmt.Errorf("push notifications require firebase credentials")
	}

	return nil
}

// PostgresURL builds the connection string used by both lib/pq and the migrator.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

// Masking sensitive information for logging
func (c *Config) Redact() Config {
	redacted := *c
	redacted.SigningKey = "****"
	redacted.DBPassword = "****"
	redacted.RedisPassword = "****"
	return redacted
}
