package rabbit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrClosed = errors.New("rabbitmq client closed")

const (
	heartbeat        = 10 * time.Second
	reconnectRetries = 5
)

type RabbitMQ struct {
	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	// isClosed is set when the broker side drops, shutdown is set by Close
	isClosed atomic.Bool
	shutdown atomic.Bool
	dsn      string

	log logger.Logger
}

// New creates rabbitMQ client
func New(ctx context.Context, dsn string, log logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{dsn: dsn, log: log}

	conn, ch, err := r.dial()
	if err != nil {
		return nil, err
	}
	r.attach(conn, ch)

	log.Info(wrap.WithAction(ctx, types.ActionRabbitMQConnected), "connected to rabbitMQ")
	return r, nil
}

func (r *RabbitMQ) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(r.dsn, amqp.Config{Heartbeat: heartbeat})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return conn, ch, nil
}

// attach stores the connection and starts watching both close notifications.
// Must be called with a fresh pair after every (re)connect.
func (r *RabbitMQ) attach(conn *amqp.Connection, ch *amqp.Channel) {
	connClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClose := ch.NotifyClose(make(chan *amqp.Error, 1))

	r.conn = conn
	r.channel = ch
	r.isClosed.Store(false)

	go r.monitorConnection(connClose, chClose)
}

// monitorConnection marks the client closed when either side goes away
func (r *RabbitMQ) monitorConnection(connClose, chClose <-chan *amqp.Error) {
	var closeErr *amqp.Error
	source := "connection"
	select {
	case closeErr = <-connClose:
	case closeErr = <-chClose:
		source = "channel"
	}
	r.isClosed.Store(true)

	ctx := wrap.WithAction(context.Background(), types.ActionRabbitConnectionClosed)
	if closeErr != nil {
		r.log.Error(ctx, "RabbitMQ "+source+" closed with error", closeErr)
	} else {
		r.log.Debug(ctx, "RabbitMQ "+source+" closed gracefully")
	}
}

// Channel returns the current channel, nil after Close.
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// IsConnectionClosed checks if the connection is closed
func (r *RabbitMQ) IsConnectionClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.conn == nil || r.channel == nil {
		return true
	}
	return r.isClosed.Load() || r.conn.IsClosed() || r.channel.IsClosed()
}

// Ping reports ErrClosed while the connection is down. Used by health checks.
func (r *RabbitMQ) Ping(_ context.Context) error {
	if r.IsConnectionClosed() {
		return ErrClosed
	}
	return nil
}

// Close closes rabbit channel and connection, honoring ctx
func (r *RabbitMQ) Close(ctx context.Context) error {
	ctx = wrap.WithAction(ctx, types.ActionRabbitConnectionClosing)

	if !r.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	r.mu.Lock()
	ch, conn := r.channel, r.conn
	r.channel, r.conn = nil, nil
	r.mu.Unlock()

	if ch != nil {
		r.log.Debug(ctx, "closing channel")
		if err := closeWithCtxFunc(ctx, ch.Close); err != nil && ctx.Err() == nil && !errors.Is(err, amqp.ErrClosed) {
			r.log.Error(ctx, "error closing channel", err)
		}
	}

	if conn != nil {
		r.log.Debug(ctx, "closing RabbitMQ connection")
		if err := closeWithCtxFunc(ctx, conn.Close); err != nil && !errors.Is(err, amqp.ErrClosed) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.log.Info(wrap.WithAction(ctx, types.ActionRabbitConnectionClosed), "rabbitMQ closed")
	return nil
}

// helper to close a resource with context cancellation safely
func closeWithCtxFunc(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reconnect dials again with linear backoff.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown.Load() {
		return ErrClosed
	}
	if r.dsn == "" {
		return fmt.Errorf("dsn is empty: can't reconnect")
	}
	if !r.isClosed.Load() && r.conn != nil && !r.conn.IsClosed() && r.channel != nil && !r.channel.IsClosed() {
		return nil
	}

	var (
		conn *amqp.Connection
		ch   *amqp.Channel
		err  error
	)
	for i := range reconnectRetries {
		conn, ch, err = r.dial()
		if err == nil {
			break
		}

		wait := time.Duration(i+1) * 2 * time.Second
		r.log.Debug(ctx, fmt.Sprintf("reconnect attempt %d failed, retrying in %v", i+1, wait))

		select {
		case <-ctx.Done():
			r.log.Debug(ctx, "graceful shutdown, stopping reconnect attempts")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return fmt.Errorf("failed to reconnect to RabbitMQ: %w", err)
	}

	r.attach(conn, ch)
	r.log.Info(wrap.WithAction(ctx, types.ActionRabbitReconnected), "RabbitMQ reconnected successfully")
	return nil
}

func (r *RabbitMQ) EnsureConnection(ctx context.Context) error {
	if r.shutdown.Load() {
		return ErrClosed
	}
	if r.IsConnectionClosed() {
		r.log.Warn(ctx, "rabbit connection closed, reconnecting...")
		if err := r.Reconnect(ctx); err != nil {
			return fmt.Errorf("failed to reconnect to RabbitMQ: %w", err)
		}
	}
	return nil
}
