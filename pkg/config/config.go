package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"medbook/pkg/client"
	kafka_config "medbook/pkg/kafka/config"
	"medbook/pkg/logger"
	"medbook/pkg/rabbitmq"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	MetricsPort string

	StatusStore string
	BookingTTL  time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisPoolSize    int
	RedisDialTimeout time.Duration

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RabbitMQURL                 string
	RabbitMQHeartbeat           time.Duration
	RabbitMQReconnectMinBackoff time.Duration
	RabbitMQReconnectMaxBackoff time.Duration
	BookingQueue                string
	NotificationExchange        string
	PublishTimeout              time.Duration

	WorkerCount         int
	WorkerPrefetch      int
	DecisionTimeout     time.Duration
	DecisionMinDelay    time.Duration
	DecisionMaxDelay    time.Duration
	DecisionSuccessRate float64

	SweepInterval   time.Duration
	SweepStaleAfter time.Duration
	SweepBatchSize  int

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string

	Kafka *kafka_config.Config

	ServiceName string
	Log         *logger.Logger
	Client      *client.Client
}

// Load reads .env (if present) and the environment, validates the result and
// exits on invalid configuration.
func Load(serviceName string) *Config {
	envFileErr := godotenv.Load()

	cfg := FromEnv(serviceName)
	if envFileErr == nil {
		cfg.Log.Debug("Loaded environment from .env")
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds the configuration without validating it.
func FromEnv(serviceName string) *Config {
	cfg := &Config{
		Port:        getEnvStr(EnvPort, DefaultPort),
		MetricsPort: getEnvStr(EnvMetricsPort, DefaultMetricsPort),

		StatusStore: getEnvStr(EnvStatusStore, DefaultStatusStore),
		BookingTTL:  getEnvDuration(EnvBookingTTL, DefaultBookingTTL),

		RedisAddr:        getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword:    getEnvStr(EnvRedisPassword, ""),
		RedisDB:          getEnvNum(EnvRedisDB, DefaultRedisDB),
		RedisPoolSize:    getEnvNum(EnvRedisPoolSize, DefaultRedisPoolSize),
		RedisDialTimeout: getEnvDuration(EnvRedisDialTimeout, DefaultRedisDialTimeout),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RabbitMQURL:                 getEnvStr(EnvRabbitMQURL, DefaultRabbitMQURL),
		RabbitMQHeartbeat:           getEnvDuration(EnvRabbitMQHeartbeat, DefaultRabbitMQHeartbeat),
		RabbitMQReconnectMinBackoff: getEnvDuration(EnvRabbitMQReconnectMinBackoff, DefaultRabbitMQReconnectMinBackoff),
		RabbitMQReconnectMaxBackoff: getEnvDuration(EnvRabbitMQReconnectMaxBackoff, DefaultRabbitMQReconnectMaxBackoff),
		BookingQueue:                getEnvStr(EnvBookingQueue, DefaultBookingQueue),
		NotificationExchange:        getEnvStr(EnvNotificationExchange, DefaultNotificationExchange),
		PublishTimeout:              getEnvDuration(EnvPublishTimeout, DefaultPublishTimeout),

		WorkerCount:         getEnvNum(EnvWorkerCount, DefaultWorkerCount),
		WorkerPrefetch:      getEnvNum(EnvWorkerPrefetch, DefaultWorkerPrefetch),
		DecisionTimeout:     getEnvDuration(EnvDecisionTimeout, DefaultDecisionTimeout),
		DecisionMinDelay:    getEnvDuration(EnvDecisionMinDelay, DefaultDecisionMinDelay),
		DecisionMaxDelay:    getEnvDuration(EnvDecisionMaxDelay, DefaultDecisionMaxDelay),
		DecisionSuccessRate: getEnvFloat(EnvDecisionSuccessRate, DefaultDecisionSuccessRate),

		SweepInterval:   getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		SweepStaleAfter: getEnvDuration(EnvSweepStaleAfter, DefaultSweepStaleAfter),
		SweepBatchSize:  getEnvNum(EnvSweepBatchSize, DefaultSweepBatchSize),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		LogLevel:  getEnvStr(EnvLogLevel, DefaultLogLevel),
		LogFormat: getEnvStr(EnvLogFormat, DefaultLogFormat),

		Kafka: kafka_config.Load(),

		ServiceName: serviceName,
		Client:      client.NewClient(),
	}

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: true,
		Service:   serviceName,
	})
	return cfg
}

func (cfg *Config) RabbitMQConfig() rabbitmq.Config {
	return rabbitmq.Config{
		URL:                 cfg.RabbitMQURL,
		Heartbeat:           cfg.RabbitMQHeartbeat,
		MinReconnectBackoff: cfg.RabbitMQReconnectMinBackoff,
		MaxReconnectBackoff: cfg.RabbitMQReconnectMaxBackoff,
		ConnectionName:      cfg.ServiceName,
	}
}

func (cfg *Config) Topology() rabbitmq.Topology {
	return rabbitmq.BookingTopology(cfg.BookingQueue, cfg.NotificationExchange)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, client.RedisOptions{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		PoolSize:    cfg.RedisPoolSize,
		DialTimeout: cfg.RedisDialTimeout,
	})
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetStatusStore connects the backend selected by STATUS_STORE.
func (cfg *Config) SetStatusStore() {
	switch cfg.StatusStore {
	case StoreMongo:
		cfg.SetMongo()
	default:
		cfg.SetRedis()
	}
}

func (cfg *Config) SetRabbitMQ(ctx context.Context) {
	cfg.Client.SetRabbitMQ(ctx, cfg.Log, cfg.RabbitMQConfig(), cfg.Topology())
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}
	if port, err := strconv.Atoi(cfg.MetricsPort); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("MetricsPort must be between 1 and 65535, got: %s", cfg.MetricsPort))
	}

	if cfg.StatusStore != StoreRedis && cfg.StatusStore != StoreMongo {
		errors = append(errors, fmt.Sprintf("StatusStore must be %q or %q, got: %s", StoreRedis, StoreMongo, cfg.StatusStore))
	}
	if cfg.BookingTTL <= 0 {
		errors = append(errors, fmt.Sprintf("BookingTTL must be positive, got: %s", cfg.BookingTTL))
	}

	if cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty")
	}
	if cfg.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
	}
	if cfg.RedisPoolSize <= 0 {
		errors = append(errors, fmt.Sprintf("RedisPoolSize must be positive, got: %d", cfg.RedisPoolSize))
	}
	if cfg.RedisDialTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RedisDialTimeout must be positive, got: %s", cfg.RedisDialTimeout))
	}

	if cfg.StatusStore == StoreMongo {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	}

	if err := cfg.RabbitMQConfig().Validate(); err != nil {
		errors = append(errors, err.Error())
	}
	if cfg.BookingQueue == "" {
		errors = append(errors, "BookingQueue cannot be empty")
	}
	if cfg.NotificationExchange == "" {
		errors = append(errors, "NotificationExchange cannot be empty")
	}
	if cfg.PublishTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("PublishTimeout must be positive, got: %s", cfg.PublishTimeout))
	}

	if cfg.WorkerCount <= 0 {
		errors = append(errors, fmt.Sprintf("WorkerCount must be positive, got: %d", cfg.WorkerCount))
	}
	if cfg.WorkerPrefetch <= 0 {
		errors = append(errors, fmt.Sprintf("WorkerPrefetch must be positive, got: %d", cfg.WorkerPrefetch))
	}
	if cfg.DecisionTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("DecisionTimeout must be positive, got: %s", cfg.DecisionTimeout))
	}
	if cfg.DecisionMinDelay < 0 {
		errors = append(errors, fmt.Sprintf("DecisionMinDelay cannot be negative, got: %s", cfg.DecisionMinDelay))
	}
	if cfg.DecisionMaxDelay < cfg.DecisionMinDelay {
		errors = append(errors, fmt.Sprintf("DecisionMaxDelay (%s) must be >= DecisionMinDelay (%s)", cfg.DecisionMaxDelay, cfg.DecisionMinDelay))
	}
	if cfg.DecisionSuccessRate < 0 || cfg.DecisionSuccessRate > 1 {
		errors = append(errors, fmt.Sprintf("DecisionSuccessRate must be between 0 and 1, got: %g", cfg.DecisionSuccessRate))
	}

	if cfg.SweepInterval < 0 {
		errors = append(errors, fmt.Sprintf("SweepInterval cannot be negative, got: %s", cfg.SweepInterval))
	}
	if cfg.SweepInterval > 0 {
		if cfg.SweepStaleAfter <= 0 {
			errors = append(errors, fmt.Sprintf("SweepStaleAfter must be positive, got: %s", cfg.SweepStaleAfter))
		}
		if cfg.SweepBatchSize <= 0 {
			errors = append(errors, fmt.Sprintf("SweepBatchSize must be positive, got: %d", cfg.SweepBatchSize))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.LogFormat != logger.JSON && cfg.LogFormat != logger.TEXT {
		errors = append(errors, fmt.Sprintf("LogFormat must be %q or %q, got: %s", logger.JSON, logger.TEXT, cfg.LogFormat))
	}

	errors = append(errors, cfg.Kafka.Validate()...)

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	attrs := []any{
		"port", cfg.Port,
		"metrics_port", cfg.MetricsPort,
		"status_store", cfg.StatusStore,
		"booking_ttl", cfg.BookingTTL,
		"redis_addr", cfg.RedisAddr,
		"redis_db", cfg.RedisDB,
		"redis_pool_size", cfg.RedisPoolSize,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"rabbitmq_url", rabbitmq.RedactURL(cfg.RabbitMQURL),
		"rabbitmq_heartbeat", cfg.RabbitMQHeartbeat,
		"rabbitmq_reconnect_min_backoff", cfg.RabbitMQReconnectMinBackoff,
		"rabbitmq_reconnect_max_backoff", cfg.RabbitMQReconnectMaxBackoff,
		"booking_queue", cfg.BookingQueue,
		"notification_exchange", cfg.NotificationExchange,
		"publish_timeout", cfg.PublishTimeout,
		"worker_count", cfg.WorkerCount,
		"worker_prefetch", cfg.WorkerPrefetch,
		"decision_timeout", cfg.DecisionTimeout,
		"decision_min_delay", cfg.DecisionMinDelay,
		"decision_max_delay", cfg.DecisionMaxDelay,
		"decision_success_rate", cfg.DecisionSuccessRate,
		"sweep_interval", cfg.SweepInterval,
		"sweep_stale_after", cfg.SweepStaleAfter,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	}
	attrs = append(attrs, cfg.Kafka.LogAttrs()...)
	cfg.Log.Info("Configuration loaded successfully", attrs...)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
