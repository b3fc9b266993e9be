// Package stream moves rider location samples through Kafka.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "rider-locations"

// Producer publishes samples keyed by rider id, so one rider's samples keep their order.
type Producer struct {
	writer  *kafka.Writer
	timeout time.Duration
}

func NewProducer(brokers []string, topic string, timeout time.Duration) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		timeout: timeout,
	}
}

func (p *Producer) Save(ctx context.Context, sample models.RiderLocationSample) error {
	b, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal location sample: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(sample.RiderID.String()), Value: b}); err != nil {
		return fmt.Errorf("failed to publish location sample: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
