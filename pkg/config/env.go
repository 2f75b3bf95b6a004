package config

const (
	EnvPort        = "PORT"
	EnvMetricsPort = "METRICS_PORT"
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogFormat   = "LOG_FORMAT"

	EnvStatusStore = "STATUS_STORE"
	EnvBookingTTL  = "BOOKING_TTL"

	EnvRedisAddr        = "REDIS_ADDR"
	EnvRedisPassword    = "REDIS_PASSWORD"
	EnvRedisDB          = "REDIS_DB"
	EnvRedisPoolSize    = "REDIS_POOL_SIZE"
	EnvRedisDialTimeout = "REDIS_DIAL_TIMEOUT"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRabbitMQURL                 = "RABBITMQ_URL"
	EnvRabbitMQHeartbeat           = "RABBITMQ_HEARTBEAT"
	EnvRabbitMQReconnectMinBackoff = "RABBITMQ_RECONNECT_MIN_BACKOFF"
	EnvRabbitMQReconnectMaxBackoff = "RABBITMQ_RECONNECT_MAX_BACKOFF"
	EnvBookingQueue                = "BOOKING_QUEUE"
	EnvNotificationExchange        = "NOTIFICATION_EXCHANGE"
	EnvPublishTimeout              = "PUBLISH_TIMEOUT"

	EnvWorkerCount         = "WORKER_COUNT"
	EnvWorkerPrefetch      = "WORKER_PREFETCH"
	EnvDecisionTimeout     = "DECISION_TIMEOUT"
	EnvDecisionMinDelay    = "DECISION_MIN_DELAY"
	EnvDecisionMaxDelay    = "DECISION_MAX_DELAY"
	EnvDecisionSuccessRate = "DECISION_SUCCESS_RATE"

	EnvSweepInterval   = "SWEEP_INTERVAL"
	EnvSweepStaleAfter = "SWEEP_STALE_AFTER"
	EnvSweepBatchSize  = "SWEEP_BATCH_SIZE"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
