package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var ErrConnClosed = errors.New("connection closed")

type Conn struct {
	id      uuid.UUID
	userID  uuid.UUID
	conn    *websocket.Conn
	doneCtx context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
}

func NewConn(ctx context.Context, userID uuid.UUID, conn *websocket.Conn) *Conn {
	ctx, cancel := context.WithCancel(ctx)

	return &Conn{
		id:      uuid.New(),
		userID:  userID,
		conn:    conn,
		doneCtx: ctx,
		cancel:  cancel,
	}
}

func (c *Conn) ID() uuid.UUID {
	return c.id
}

func (c *Conn) UserID() uuid.UUID {
	return c.userID
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.doneCtx.Done()
}

// write must be called with c.mu held
func (c *Conn) write(fn func() error) error {
	if c.conn == nil {
		return errors.New("connection is nil")
	}
	select {
	case <-c.doneCtx.Done():
		return ErrConnClosed
	default:
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return fn()
}

// Health sends a ping control frame
func (c *Conn) Health() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(func() error {
		return c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
	}); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Send writes v as a JSON text frame
func (c *Conn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(func() error { return c.conn.WriteJSON(v) }); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

// Listen reads frames until the peer goes away or the connection is closed.
// Pongs extend the read deadline.
func (c *Conn) Listen(handler func(msg []byte) error) error {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.doneCtx.Done():
				return nil
			default:
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if err := handler(msg); err != nil {
			return fmt.Errorf("handler failed: %w", err)
		}
	}
}

// KeepAlive pings the peer until the connection is closed or a ping fails.
func (c *Conn) KeepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.doneCtx.Done():
			return
		case <-ticker.C:
			if err := c.Health(); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

// Close sends a close frame on a best-effort basis and releases the socket. Safe to call twice.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.doneCtx.Done():
		return nil
	default:
	}

	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}
	c.cancel()

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
