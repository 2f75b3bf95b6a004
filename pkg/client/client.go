package client

import (
	"context"
	"time"

	"medbook/pkg/logger"
	"medbook/pkg/rabbitmq"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client holds the process-wide connection handles. Each one is nil until
// the matching Set method ran.
type Client struct {
	Redis    *redis.Client
	Mongo    *mongo.Client
	RabbitMQ *rabbitmq.Connection
}

func NewClient() *Client {
	return &Client{}
}

type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// SetRedis creates the pooled client. go-redis dials lazily and redials on
// its own, so a failed ping only warns: health checks report it.
func (c *Client) SetRedis(log *logger.Logger, opts RedisOptions) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		PoolSize:    opts.PoolSize,
		DialTimeout: opts.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis not reachable yet", "addr", opts.Addr, "error", err)
	} else {
		log.Info("Successfully connected to Redis", "addr", opts.Addr)
	}
	c.Redis = client
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = client
}

// SetRabbitMQ starts the connection supervisor. It does not wait for the
// broker: callers block on WaitReady or Channel when they need it.
func (c *Client) SetRabbitMQ(ctx context.Context, log *logger.Logger, cfg rabbitmq.Config, topology rabbitmq.Topology) {
	conn := rabbitmq.NewConnection(cfg, topology, log)
	conn.Start(ctx)
	c.RabbitMQ = conn
}

func (c *Client) GracefulShutdown(log *logger.Logger, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if c.RabbitMQ != nil {
		c.RabbitMQ.Close()
		log.Info("RabbitMQ connection closed")
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Error("Failed to close Redis client", "error", err)
		} else {
			log.Info("Redis client closed")
		}
	}
	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(ctx); err != nil {
			log.Error("Failed to disconnect MongoDB", "error", err)
		} else {
			log.Info("MongoDB disconnected")
		}
	}
}
