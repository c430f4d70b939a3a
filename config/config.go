package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`
	// Locale used for display strings when the request does not ask for one
	DefaultLocale string `env:"DEFAULT_LOCALE" env-default:"pt-BR"`

	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:"localhost"`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:"postgres"`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"clover"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	// Run migrations when the api starts
	DatabaseMigrateOnStart bool `env:"DB_MIGRATE_ON_START" env-default:"true"`

	// Redis backs the field definition cache. Empty host selects the in-process cache.
	RedisHost string `env:"REDIS_HOST" env-default:""`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`
	// Definition cache TTL
	DefinitionCacheTTLSeconds int `env:"DEFINITION_CACHE_TTL_SECONDS" env-default:"300"`

	// Auth Enabled - when false, allows X-Tenant-ID and X-User-ID headers for testing
	AuthEnabled bool `env:"AUTH_ENABLED" env-default:"false"`
	// Auth Issuer URL
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	// Auth Client ID
	AuthClientID string `env:"AUTH_CLIENT_ID" env-default:""`

	// Kafka is optional. Without brokers no events are published and the worker cannot run.
	KafkaBrokers            []string `env:"KAFKA_BROKERS" env-default:""`
	KafkaValuesTopic        string   `env:"KAFKA_VALUES_TOPIC" env-default:"clover.values.changed"`
	KafkaQualificationTopic string   `env:"KAFKA_QUALIFICATION_TOPIC" env-default:"clover.qualification.evaluated"`
	KafkaConsumerGroup      string   `env:"KAFKA_CONSUMER_GROUP" env-default:"clover-qualification"`
	KafkaBatchSize          int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout       int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks       int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression        string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Processor
	ProcessorWorkerCount    int `env:"PROCESSOR_WORKER_COUNT" env-default:"4"`
	ProcessorTimeoutSeconds int `env:"PROCESSOR_TIMEOUT_SECONDS" env-default:"30"`

	// Tracing exporter: none, console or otlp
	TracingExporter string `env:"TRACING_EXPORTER" env-default:"none"`
	// Fraction of root spans sampled
	TracingSampleRatio float64 `env:"TRACING_SAMPLE_RATIO" env-default:"1"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUserName, c.DatabasePassword, c.DatabaseName, c.DatabaseSSLMode)
}

func (c *Config) DefinitionCacheTTL() time.Duration {
	return time.Duration(c.DefinitionCacheTTLSeconds) * time.Second
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaBrokers[0] != ""
}
