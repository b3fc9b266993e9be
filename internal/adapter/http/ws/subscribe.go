package wshandler

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/Temutjin2k/ride-match/internal/adapter/http/handler"
	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/service/broadcast"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/Temutjin2k/ride-match/pkg/metrics"
	ws "github.com/Temutjin2k/ride-match/pkg/wsHub"
	"github.com/gorilla/websocket"
)

const maxTopics = 20

type Authorizer interface {
	AuthorizeSubscription(ctx context.Context, id models.Identity, topic string) error
}

type Broadcaster interface {
	Subscribe(topics ...string) *broadcast.Subscription
}

// SubscribeHandler streams broadcast events for authorized topics over a websocket.
// Events are hints only, clients re-read ride state over HTTP.
type SubscribeHandler struct {
	auth        Authorizer
	broadcaster Broadcaster
	conns       *ws.ConnectionHub
	upgrader    websocket.Upgrader
	serviceName string
	l           logger.Logger
}

func NewSubscribeHandler(auth Authorizer, broadcaster Broadcaster, conns *ws.ConnectionHub, allowedOrigins []string, serviceName string, l logger.Logger) *SubscribeHandler {
	h := &SubscribeHandler{
		auth:        auth,
		broadcaster: broadcaster,
		conns:       conns,
		serviceName: serviceName,
		l:           l,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin) || slices.Contains(allowedOrigins, "*")
		},
	}
	return h
}

// Subscribe godoc
// @Summary      Subscribe to ride events
// @Description  Upgrades to a websocket. Topics: new-bookings (riders) and ride.{ride_id} (participants and applicants).
// @Tags         Realtime
// @Security     BearerAuth
// @Param        topic  query  []string  true   "Topics" collectionFormat(multi)
// @Param        token  query  string    false  "Access token when the Authorization header can't be set"
// @Success      101
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /ws [get]
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "ws_subscribe")

	id, ok := models.IdentityFromContext(ctx)
	if !ok {
		writeHTTPError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	topics := parseTopics(r.URL.Query()["topic"])
	if len(topics) == 0 || len(topics) > maxTopics {
		writeHTTPError(w, http.StatusUnprocessableEntity, "between 1 and 20 topics must be provided")
		return
	}

	// авторизуем все топики до апгрейда, чтобы вернуть нормальный HTTP код
	for _, topic := range topics {
		if err := h.auth.AuthorizeSubscription(ctx, id, topic); err != nil {
			h.l.Warn(wrap.ErrorCtx(ctx, err), "subscription denied", "topic", topic, "error", err.Error())
			writeHTTPError(w, handler.GetCode(err), err.Error())
			return
		}
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.l.Warn(ctx, "websocket upgrade failed", "error", err.Error())
		return
	}

	conn := ws.NewConn(context.WithoutCancel(ctx), id.UserID, raw)
	if err := h.conns.Add(conn); err != nil {
		_ = errorResponse(conn, "server is shutting down")
		_ = conn.Close()
		return
	}
	defer h.conns.Delete(conn.ID())

	metrics.WebSocketConnectionsGauge.WithLabelValues(h.serviceName).Inc()
	defer metrics.WebSocketConnectionsGauge.WithLabelValues(h.serviceName).Dec()

	sub := h.broadcaster.Subscribe(topics...)
	defer sub.Close()

	if err := conn.Send(models.WebSocketMessage{Type: models.WSMessageSubscribed, Topics: topics}); err != nil {
		h.l.Warn(ctx, "failed to send subscription ack", "error", err.Error())
		return
	}
	h.l.Info(ctx, "websocket subscribed", "topics", topics, "conn_id", conn.ID())

	go h.pump(ctx, conn, sub)
	go conn.KeepAlive()

	err = conn.Listen(func(msg []byte) error {
		// клиент ничего не обязан слать, но отвечаем на битый JSON
		var in map[string]any
		if json.Unmarshal(msg, &in) != nil {
			return errorResponse(conn, "messages must be JSON")
		}
		return nil
	})
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		h.l.Debug(ctx, "websocket closed", "error", err.Error())
	}
}

// pump forwards subscription messages until the connection or subscription ends.
func (h *SubscribeHandler) pump(ctx context.Context, conn *ws.Conn, sub *broadcast.Subscription) {
	for {
		select {
		case <-conn.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				_ = conn.Close()
				return
			}
			event := msg.Event
			if err := conn.Send(models.WebSocketMessage{Type: models.WSMessageEvent, Topic: msg.Topic, Data: &event}); err != nil {
				h.l.Debug(ctx, "failed to deliver event, closing connection", "error", err.Error())
				_ = conn.Close()
				return
			}
		}
	}
}

func writeHTTPError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
