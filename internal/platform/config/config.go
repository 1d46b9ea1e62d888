// Package config reads runtime configuration from environment variables.
// Empty connection settings disable the matching integration so the server
// can run entirely in memory for local development and tests.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every section the binaries need.
type Config struct {
	Server   Server
	Auth     Auth
	Database Database
	Redis    RedisConfig
	Cache    CacheTTLs
	Kafka    Kafka
	Storage  ObjectStorage
	Queue    Queue
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        string
	LogFormat       string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// IsProduction reports whether the server runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Auth configures bearer token validation.
type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// Database configures the Postgres connection pool behind database/sql.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
}

// RedisConfig configures the cache client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CacheTTLs holds the lifetime of each transfer cache family.
type CacheTTLs struct {
	Transfer time.Duration
	List     time.Duration
	User     time.Duration
	History  time.Duration
	District time.Duration
	Stats    time.Duration
}

// Kafka configures event publishing and the outbox relay.
type Kafka struct {
	Brokers            []string
	Topic              string
	ClientID           string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

// Enabled reports whether a broker list was configured.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// ObjectStorage configures the S3-compatible document store.
type ObjectStorage struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Region     string
	UseSSL     bool
	Bucket     string
	PresignTTL time.Duration
}

// Enabled reports whether an endpoint was configured.
func (o ObjectStorage) Enabled() bool {
	return o.Endpoint != ""
}

// Queue configures the asynq task queue used for cache preloading.
type Queue struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
}

// Enabled reports whether a queue broker was configured.
func (q Queue) Enabled() bool {
	return q.RedisAddr != ""
}

const (
	defaultAddr          = ":8080"
	defaultTxTimeout     = 5 * time.Second
	defaultTopic         = "land-admin.events"
	defaultBucket        = "land-transfer-documents"
	defaultPresignTTL    = 15 * time.Minute
	defaultOutboxPoll    = 2 * time.Second
	defaultOutboxBatch   = 100
	defaultQueueWorkers  = 4
	devJWTSigningKey     = "dev-secret-key-change-in-production"
	defaultJWTIssuer     = "land-admin"
	defaultJWTAudience   = "land-admin-api"
	defaultRequestBudget = 30 * time.Second
)

// Load builds a Config from environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:            readEnv("LAND_ADMIN_ADDR", defaultAddr),
			Environment:     readEnv("ENVIRONMENT", "development"),
			LogLevel:        readEnv("LOG_LEVEL", "info"),
			LogFormat:       readEnv("LOG_FORMAT", "json"),
			RequestTimeout:  parseDuration("REQUEST_TIMEOUT", defaultRequestBudget),
			ShutdownTimeout: parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: Auth{
			JWTSigningKey: readEnv("JWT_SIGNING_KEY", ""),
			JWTIssuer:     readEnv("JWT_ISSUER", defaultJWTIssuer),
			JWTAudience:   readEnv("JWT_AUDIENCE", defaultJWTAudience),
		},
		Database: Database{
			URL:             readEnv("DATABASE_URL", ""),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			TxTimeout:       parseDuration("DB_TX_TIMEOUT", defaultTxTimeout),
		},
		Redis: RedisConfig{
			URL:          readEnv("REDIS_URL", ""),
			PoolSize:     parseInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: parseInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  parseDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  parseDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: parseDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Cache: CacheTTLs{
			Transfer: parseSeconds("CACHE_TTL_TRANSFER", 600),
			List:     parseSeconds("CACHE_TTL_LIST", 300),
			User:     parseSeconds("CACHE_TTL_USER", 600),
			History:  parseSeconds("CACHE_TTL_HISTORY", 900),
			District: parseSeconds("CACHE_TTL_DISTRICT", 1200),
			Stats:    parseSeconds("CACHE_TTL_STATS", 1800),
		},
		Kafka: Kafka{
			Brokers:            parseList("KAFKA_BROKERS"),
			Topic:              readEnv("KAFKA_TOPIC", defaultTopic),
			ClientID:           readEnv("KAFKA_CLIENT_ID", "land-admin"),
			OutboxPollInterval: parseDuration("OUTBOX_POLL_INTERVAL", defaultOutboxPoll),
			OutboxBatchSize:    parseInt("OUTBOX_BATCH_SIZE", defaultOutboxBatch),
		},
		Storage: ObjectStorage{
			Endpoint:   readEnv("S3_ENDPOINT", ""),
			AccessKey:  readEnv("S3_ACCESS_KEY", ""),
			SecretKey:  readEnv("S3_SECRET_KEY", ""),
			Region:     readEnv("S3_REGION", "us-east-1"),
			UseSSL:     readEnv("S3_USE_SSL", "false") == "true",
			Bucket:     readEnv("S3_BUCKET", defaultBucket),
			PresignTTL: parseDuration("S3_PRESIGN_TTL", defaultPresignTTL),
		},
		Queue: Queue{
			RedisAddr:     readEnv("QUEUE_REDIS_ADDR", ""),
			RedisPassword: readEnv("QUEUE_REDIS_PASSWORD", ""),
			RedisDB:       parseInt("QUEUE_REDIS_DB", 0),
			Concurrency:   parseInt("QUEUE_CONCURRENCY", defaultQueueWorkers),
		},
	}

	if cfg.Auth.JWTSigningKey == "" {
		if cfg.Server.IsProduction() {
			return Config{}, fmt.Errorf("JWT_SIGNING_KEY is required in production")
		}
		cfg.Auth.JWTSigningKey = devJWTSigningKey
	}
	if cfg.Database.TxTimeout <= 0 {
		cfg.Database.TxTimeout = defaultTxTimeout
	}
	if cfg.Kafka.OutboxBatchSize <= 0 {
		cfg.Kafka.OutboxBatchSize = defaultOutboxBatch
	}
	if cfg.Queue.Concurrency <= 0 {
		cfg.Queue.Concurrency = defaultQueueWorkers
	}
	return cfg, nil
}

func readEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func parseInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return d
}

// parseSeconds reads an integer number of seconds, the unit cache TTLs are
// documented in.
func parseSeconds(key string, fallback int) time.Duration {
	n := parseInt(key, fallback)
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func parseList(key string) []string {
	v := readEnv(key, "")
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
