package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/google/uuid"
)

var (
	ErrEmptyConn      = errors.New("connection is empty")
	ErrConnIsNotFound = errors.New("connection not found")
	ErrHubClosed      = errors.New("connection hub closed")
)

// ConnectionHub хранит и управляет всеми активными WebSocket соединениями.
// Один пользователь может держать несколько соединений.
type ConnectionHub struct {
	clients map[uuid.UUID]*Conn
	closed  bool
	l       logger.Logger
	mu      sync.Mutex
	wg      sync.WaitGroup
}

func NewConnHub(l logger.Logger) *ConnectionHub {
	return &ConnectionHub{
		clients: make(map[uuid.UUID]*Conn),
		l:       l,
	}
}

// Add registers a connection under its own id.
func (h *ConnectionHub) Add(conn *Conn) error {
	if conn == nil {
		return ErrEmptyConn
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	h.clients[conn.id] = conn
	h.wg.Add(1)
	return nil
}

// Delete удаляет и закрывает соединение по ID
func (h *ConnectionHub) Delete(connID uuid.UUID) error {
	h.mu.Lock()
	conn, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
	}
	h.mu.Unlock()

	if !ok {
		return ErrConnIsNotFound
	}

	if err := conn.Close(); err != nil {
		h.l.Debug(wrap.WithAction(context.Background(), "ws_connection_delete"),
			"failed to close conn",
			"conn_id", connID,
			"user_id", conn.userID,
			"err", err.Error(),
		)
	}
	h.wg.Done()
	return nil
}

// SendTo sends msg to every connection of the user. Returns ErrConnIsNotFound if there is none.
func (h *ConnectionHub) SendTo(userID uuid.UUID, msg any) error {
	var targets []*Conn
	h.mu.Lock()
	for _, c := range h.clients {
		if c.userID == userID {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		return ErrConnIsNotFound
	}
	var errs []error
	for _, c := range targets {
		errs = append(errs, c.Send(msg))
	}
	return errors.Join(errs...)
}

// Len returns the number of open connections
func (h *ConnectionHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close закрывает каждое websocket соединение и ждет их удаления
func (h *ConnectionHub) Close() {
	ctx := wrap.WithAction(context.Background(), "hub_close")

	// копируем клиентов под локом
	h.mu.Lock()
	h.closed = true
	ids := make([]uuid.UUID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	// закрываем вне локов
	for _, id := range ids {
		_ = h.Delete(id)
	}

	h.wg.Wait()

	h.l.Info(ctx, "all websocket connections closed gracefully")
}
