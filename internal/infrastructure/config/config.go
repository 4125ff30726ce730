package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/spf13/viper"
)

const (
	StorageInline = "inline"
	StorageAzure  = "azblob"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Bundling      BundlingConfig      `mapstructure:"bundling"`
	Retention     RetentionConfig     `mapstructure:"retention"`
	Hub           HubConfig           `mapstructure:"hub"`
	Peek          PeekConfig          `mapstructure:"peek"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	ApplicationName string        `mapstructure:"application_name"`
	// StatementTimeout bounds every query. IdleInTxTimeout releases the
	// row locks of a transaction whose client went away.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	IdleInTxTimeout  time.Duration `mapstructure:"idle_in_transaction_timeout"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// BundlingConfig controls bundle size and the optimistic-concurrency retry loop.
type BundlingConfig struct {
	MaxMessageCount    int           `mapstructure:"max_message_count"`
	MaxConflictRetries uint          `mapstructure:"max_conflict_retries"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
}

type RetentionConfig struct {
	Window    time.Duration `mapstructure:"window"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

// HubConfig identifies the sender of every generated document.
type HubConfig struct {
	ActorNumber string `mapstructure:"actor_number"`
	ActorRole   string `mapstructure:"actor_role"`
}

// Actor resolves the configured hub identity.
func (c HubConfig) Actor() (actor.Actor, error) {
	role, err := actor.RoleFromCode(c.ActorRole)
	if err != nil {
		return actor.Actor{}, err
	}
	return actor.New(actor.Number(c.ActorNumber), role)
}

// PeekConfig maps each peek category to the document types it delivers.
type PeekConfig struct {
	Categories map[string][]string `mapstructure:"categories"`
}

func (c PeekConfig) MessageCategories() (message.Categories, error) {
	return message.NewCategories(c.Categories)
}

type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	Azure   AzureConfig `mapstructure:"azure"`
}

type AzureConfig struct {
	AccountURL       string `mapstructure:"account_url"`
	ConnectionString string `mapstructure:"connection_string"`
	Container        string `mapstructure:"container"`
	// Breaker settings for the blob client.
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

type WorkerConfig struct {
	OutboxPollInterval         time.Duration `mapstructure:"outbox_poll_interval"`
	OutboxBatchSize            int           `mapstructure:"outbox_batch_size"`
	OutboxRetention            time.Duration `mapstructure:"outbox_retention"`
	EventStream                string        `mapstructure:"event_stream"`
	EventStreamMaxLen          int64         `mapstructure:"event_stream_max_len"`
	IdempotencyTTL             time.Duration `mapstructure:"idempotency_ttl"`
	IdempotencyCleanupInterval time.Duration `mapstructure:"idempotency_cleanup_interval"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
	MetricsPrefix  string `mapstructure:"metrics_prefix"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// EDI_DATABASE_HOST overrides database.host
	v.SetEnvPrefix("EDI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/edi-gateway")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Bundling.MaxMessageCount <= 0 {
		errs = append(errs, fmt.Errorf("bundling.max_message_count must be positive"))
	}
	if c.Bundling.MaxConflictRetries == 0 {
		errs = append(errs, fmt.Errorf("bundling.max_conflict_retries must be positive"))
	}
	if c.Retention.Window <= 0 {
		errs = append(errs, fmt.Errorf("retention.window must be positive"))
	}
	if c.Retention.Interval <= 0 {
		errs = append(errs, fmt.Errorf("retention.interval must be positive"))
	}
	if c.Retention.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("retention.batch_size must be positive"))
	}
	if c.Retention.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("retention.lock_ttl must be positive"))
	}
	if _, err := c.Hub.Actor(); err != nil {
		errs = append(errs, fmt.Errorf("hub: %w", err))
	}
	if _, err := c.Peek.MessageCategories(); err != nil {
		errs = append(errs, fmt.Errorf("peek.categories: %w", err))
	}
	switch c.Storage.Backend {
	case StorageInline:
	case StorageAzure:
		if c.Storage.Azure.Container == "" {
			errs = append(errs, fmt.Errorf("storage.azure.container is required for the azblob backend"))
		}
		if c.Storage.Azure.AccountURL == "" && c.Storage.Azure.ConnectionString == "" {
			errs = append(errs, fmt.Errorf("storage.azure.account_url or storage.azure.connection_string is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %q or %q, got %q", StorageInline, StorageAzure, c.Storage.Backend))
	}
	if c.Worker.OutboxBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.outbox_batch_size must be positive"))
	}
	if c.Worker.OutboxPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("worker.outbox_poll_interval must be positive"))
	}
	if c.Worker.IdempotencyCleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("worker.idempotency_cleanup_interval must be positive"))
	}

	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit", 600)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "edi")
	v.SetDefault("database.database", "edi")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.application_name", "edi-gateway")
	v.SetDefault("database.statement_timeout", "30s")
	v.SetDefault("database.idle_in_transaction_timeout", "60s")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Bundling defaults
	v.SetDefault("bundling.max_message_count", 500)
	v.SetDefault("bundling.max_conflict_retries", 10)
	v.SetDefault("bundling.retry_delay", "5ms")

	// Retention defaults
	v.SetDefault("retention.window", "720h")
	v.SetDefault("retention.interval", "24h")
	v.SetDefault("retention.batch_size", 500)
	v.SetDefault("retention.lock_ttl", "10m")

	// Hub defaults
	v.SetDefault("hub.actor_number", "5790001330583")
	v.SetDefault("hub.actor_role", "DGL")

	// Storage defaults
	v.SetDefault("storage.backend", StorageInline)
	v.SetDefault("storage.azure.container", "market-documents")
	v.SetDefault("storage.azure.breaker_max_failures", 5)
	v.SetDefault("storage.azure.breaker_timeout", "30s")
	v.SetDefault("storage.azure.request_timeout", "10s")

	// Worker defaults
	v.SetDefault("worker.outbox_poll_interval", "2s")
	v.SetDefault("worker.outbox_batch_size", 50)
	v.SetDefault("worker.outbox_retention", "168h")
	v.SetDefault("worker.event_stream", "edi:delivery-events")
	v.SetDefault("worker.event_stream_max_len", 100000)
	v.SetDefault("worker.idempotency_ttl", "24h")
	v.SetDefault("worker.idempotency_cleanup_interval", "1h")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)
	v.SetDefault("observability.metrics_prefix", "edi")

	v.SetDefault("instance_id", "edi-gateway-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatabaseURL returns the URL form of the DSN used by the migrator.
func (c *DatabaseConfig) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
