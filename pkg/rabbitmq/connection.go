package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"medbook/pkg/logger"
	"medbook/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

const closedConnGrace = 50 * time.Millisecond

type dialFunc func(url string, cfg amqp.Config) (*amqp.Connection, error)

// Connection owns one long-lived AMQP connection and keeps it alive. It
// reconnects forever with capped, jittered backoff and re-declares the
// topology every time a new connection comes up. Callers borrow channels.
type Connection struct {
	cfg      Config
	topology Topology
	log      *logger.Logger
	dial     dialFunc

	mu    sync.RWMutex
	conn  *amqp.Connection
	ready chan struct{}

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewConnection(cfg Config, topology Topology, log *logger.Logger) *Connection {
	return &Connection{
		cfg:      cfg,
		topology: topology,
		log:      log.Component("rabbitmq"),
		dial:     amqp.DialConfig,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the supervisor. It returns immediately; use WaitReady to
// block until the first connection is up.
func (c *Connection) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)
		go c.supervise(ctx)
	})
}

func (c *Connection) WaitReady(ctx context.Context) error {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrNotConnected, ctx.Err())
	}
}

func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Channel opens a new channel, waiting for a connection if none is up. The
// caller owns the channel and must close it.
func (c *Connection) Channel(ctx context.Context) (*amqp.Channel, error) {
	for {
		c.mu.RLock()
		conn, ready := c.conn, c.ready
		c.mu.RUnlock()

		if conn != nil {
			ch, err := conn.Channel()
			if err == nil {
				return ch, nil
			}
			if !errors.Is(err, amqp.ErrClosed) {
				return nil, fmt.Errorf("failed to open channel: %w", err)
			}
			// connection died under us; give the supervisor a moment to notice
			if err := sleepWithContext(ctx, closedConnGrace); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
			}
			continue
		}

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrNotConnected, ctx.Err())
		}
	}
}

// WithChannel runs fn on a fresh channel and closes it on every path.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	ch, err := c.Channel(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
	}()
	return fn(ch)
}

// Ping opens and closes a channel.
func (c *Connection) Ping(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.WithChannel(ctx, func(*amqp.Channel) error { return nil })
}

func (c *Connection) backoff(attempt int) time.Duration {
	return retryBackoff(attempt, c.cfg.MinReconnectBackoff, c.cfg.MaxReconnectBackoff)
}

func (c *Connection) supervise(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		conn, err := c.connect()
		if err != nil {
			wait := c.backoff(attempt)
			attempt++
			metrics.IncReconnectAttempt()
			c.log.Warn("RabbitMQ connection failed, retrying",
				"attempt", attempt,
				"retry_in", wait,
				"url", RedactURL(c.cfg.URL),
				"error", err,
			)
			if sleepWithContext(ctx, wait) != nil {
				return
			}
			continue
		}

		attempt = 0
		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		c.setConn(conn)
		c.log.Info("RabbitMQ connected", "url", RedactURL(c.cfg.URL))

		select {
		case <-ctx.Done():
			c.clearConn()
			if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
				c.log.Warn("Failed to close RabbitMQ connection", "error", err)
			}
			return
		case amqpErr := <-closed:
			c.clearConn()
			c.log.Warn("RabbitMQ connection lost", "error", amqpErr)
		}
	}
}

func (c *Connection) connect() (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	if c.cfg.ConnectionName != "" {
		props.SetClientConnectionName(c.cfg.ConnectionName)
	}

	conn, err := c.dial(c.cfg.URL, amqp.Config{
		Heartbeat:  c.cfg.Heartbeat,
		Locale:     "en_US",
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open setup channel: %w", err)
	}
	defer func() {
		_ = ch.Close()
	}()

	if err := c.topology.Declare(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Connection) setConn(conn *amqp.Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	close(c.ready)
}

func (c *Connection) clearConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = nil
	c.ready = make(chan struct{})
}

// Close stops the supervisor and closes the connection.
func (c *Connection) Close() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}
