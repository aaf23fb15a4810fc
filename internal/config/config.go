// Package config loads service configuration from the environment, reading
// a .env file first when one exists.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingSecret = errors.New("JWT_SECRET and FIELD_ENCRYPTION_KEY must be set")

type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Local    LocalConfig
	Security SecurityConfig
	Receipt  ReceiptConfig
	Timeouts TimeoutConfig
}

type AppConfig struct {
	Environment string
}

type HTTPConfig struct {
	Port               string
	MaxRequestBodySize int64
}

type MongoConfig struct {
	URI                    string
	Database               string
	MaxPoolSize            uint64
	MinPoolSize            uint64
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

type LocalConfig struct {
	DBPath string
}

type SecurityConfig struct {
	JWTSecret     string
	EncryptionKey string
}

type ReceiptConfig struct {
	Currency   string
	Location   string
	ChromePath string
}

type TimeoutConfig struct {
	Request  time.Duration
	Remote   time.Duration
	Print    time.Duration
	Shutdown time.Duration
}

func Load() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Environment: getEnv("APP_ENV", "production"),
		},
		HTTP: HTTPConfig{
			Port:               getEnv("HTTP_PORT", "8080"),
			MaxRequestBodySize: 1 << 20, // 1MB
		},
		Mongo: MongoConfig{
			URI:                    getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:               getEnv("MONGO_DATABASE", "pos"),
			MaxPoolSize:            getEnvUint("MONGO_MAX_POOL", 50),
			MinPoolSize:            getEnvUint("MONGO_MIN_POOL", 5),
			ConnectTimeout:         getEnvDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
			ServerSelectionTimeout: getEnvDuration("MONGO_SERVER_SELECTION_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Postgres: PostgresConfig{
			Host:              getEnv("LEDGER_DB_HOST", "localhost"),
			Port:              getEnvInt("LEDGER_DB_PORT", 5432),
			User:              getEnv("LEDGER_DB_USER", "postgres"),
			Password:          getEnv("LEDGER_DB_PASSWORD", ""),
			DBName:            getEnv("LEDGER_DB_NAME", "pos_ledger"),
			MigrationsDirPath: getEnv("LEDGER_MIGRATIONS_DIR", "internal/ledger/migrations"),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:         getEnv("KAFKA_SALES_TOPIC", "pos-sales"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "pos-daily-totals"),
		},
		Local: LocalConfig{
			DBPath: getEnv("DEVICE_DB_PATH", "data/device.db"),
		},
		Security: SecurityConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			EncryptionKey: getEnv("FIELD_ENCRYPTION_KEY", ""),
		},
		Receipt: ReceiptConfig{
			Currency:   getEnv("RECEIPT_CURRENCY", "₹"),
			Location:   getEnv("RECEIPT_TIMEZONE", "UTC"),
			ChromePath: getEnv("CHROME_PATH", ""),
		},
		Timeouts: TimeoutConfig{
			Request:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
			Remote:   getEnvDuration("REMOTE_TIMEOUT", 5*time.Second),
			Print:    getEnvDuration("PRINT_TIMEOUT", 30*time.Second),
			Shutdown: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
	}

	if cfg.Security.JWTSecret == "" || cfg.Security.EncryptionKey == "" {
		return nil, ErrMissingSecret
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if v, err := strconv.ParseUint(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
