package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/Temutjin2k/ride-match/pkg/metrics"
	"github.com/Temutjin2k/ride-match/pkg/rabbit"
)

const (
	DefaultExchange = "ride_topic"

	routingPrefix = "broadcast."
	bindingKey    = "broadcast.#"
	headerTopics  = "x-topics"

	reconnectDelay = 2 * time.Second
)

// Sink receives events relayed from the broker, normally the local hub.
type Sink interface {
	PublishMany(ctx context.Context, topics []string, event models.BroadcastEvent) error
}

// EventBroker fans broadcast events out to every service instance through a topic exchange.
// Every instance consumes from its own exclusive queue, so each instance sees each event once.
type EventBroker struct {
	client   *rabbit.RabbitMQ
	exchange string

	l logger.Logger
}

func NewEventBroker(ctx context.Context, client *rabbit.RabbitMQ, exchange string, log logger.Logger) (*EventBroker, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	b := &EventBroker{
		client:   client,
		exchange: exchange,
		l:        log,
	}

	ch := client.Channel()
	if ch == nil {
		return nil, rabbit.ErrClosed
	}
	if err := b.declareExchange(ch); err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return b, nil
}

func (b *EventBroker) declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", b.exchange, err)
	}
	return nil
}

// PublishMany sends the event once, routed by its first topic as 'broadcast.{topic}'.
// The full topic list travels in the x-topics header.
func (b *EventBroker) PublishMany(ctx context.Context, topics []string, event models.BroadcastEvent) error {
	ctx = wrap.WithAction(ctx, "rabbitmq_publish_broadcast")

	if len(topics) == 0 {
		return nil
	}

	// Проверяем и восстанавливаем соединение
	if err := b.client.EnsureConnection(ctx); err != nil {
		metrics.RecordRabbitMQPublish(b.exchange, err)
		return wrap.Error(ctx, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("failed to marshal message: %w", err))
	}

	err = retry(ctx, 3, 200*time.Millisecond, func() error {
		ch := b.client.Channel()
		if ch == nil {
			return rabbit.ErrClosed
		}
		return ch.PublishWithContext(
			ctx,
			b.exchange,              // exchange
			routingPrefix+topics[0], // routing key
			false,                   // mandatory
			false,                   // immediate
			amqp.Publishing{
				ContentType: "application/json",
				Type:        event.EventType.String(),
				Headers:     amqp.Table{headerTopics: strings.Join(topics, ",")},
				Body:        body,
				Timestamp:   time.Now(),
			},
		)
	})
	metrics.RecordRabbitMQPublish(b.exchange, err)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("failed to publish with context: %w", err))
	}
	return nil
}

// Relay consumes every broadcast event and hands it to sink until ctx is done.
// Deliveries are auto-acked: an instance that is down misses events, clients reconcile by polling.
func (b *EventBroker) Relay(ctx context.Context, sink Sink) error {
	ctx = wrap.WithAction(ctx, "rabbitmq_relay_broadcast")

	for {
		if ctx.Err() != nil {
			b.l.Debug(ctx, "broadcast relay stopped by context")
			return nil
		}

		msgs, queue, err := b.consume(ctx)
		if err != nil {
			b.l.Error(ctx, "failed to start broadcast consumer", err)
			if !sleepCtx(ctx, reconnectDelay) {
				return nil
			}
			continue
		}

		b.l.Info(ctx, "start relaying broadcast events", "exchange", b.exchange, "queue", queue)

	consumeLoop:
		for {
			select {
			case <-ctx.Done():
				b.l.Info(ctx, "broadcast relay shutting down")
				return nil

			case msg, ok := <-msgs:
				if !ok {
					b.l.Warn(ctx, "message channel closed, reconnecting...")
					break consumeLoop
				}
				b.handle(ctx, queue, msg, sink)
			}
		}

		if !sleepCtx(ctx, reconnectDelay) {
			return nil
		}
	}
}

func (b *EventBroker) consume(ctx context.Context) (<-chan amqp.Delivery, string, error) {
	if err := b.client.EnsureConnection(ctx); err != nil {
		return nil, "", err
	}
	ch := b.client.Channel()
	if ch == nil {
		return nil, "", rabbit.ErrClosed
	}

	if err := b.declareExchange(ch); err != nil {
		return nil, "", err
	}

	// server-named, exclusive, deleted with the connection
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, bindingKey, b.exchange, false, nil); err != nil {
		return nil, "", fmt.Errorf("failed to bind queue %s: %w", q.Name, err)
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to consume queue %s: %w", q.Name, err)
	}
	return msgs, q.Name, nil
}

func (b *EventBroker) handle(ctx context.Context, queue string, d amqp.Delivery, sink Sink) {
	topics := deliveryTopics(d)

	var event models.BroadcastEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		metrics.RecordRabbitMQConsume(queue, err)
		b.l.Error(ctx, "failed to unmarshal broadcast event", err, "routing_key", d.RoutingKey)
		return
	}

	err := sink.PublishMany(wrap.WithRideID(ctx, event.RideID.String()), topics, event)
	metrics.RecordRabbitMQConsume(queue, err)
	if err != nil {
		b.l.Error(wrap.ErrorCtx(ctx, err), "failed to relay broadcast event", err, "topics", topics)
	}
}

// deliveryTopics reads the x-topics header, falling back to the routing key.
func deliveryTopics(d amqp.Delivery) []string {
	if raw, _ := d.Headers[headerTopics].(string); raw != "" {
		return strings.Split(raw, ",")
	}
	return []string{strings.TrimPrefix(d.RoutingKey, routingPrefix)}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
