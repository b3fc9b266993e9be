package stream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultGroup = "ride-match-location"

	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Ingester stores a consumed sample.
type Ingester interface {
	Ingest(ctx context.Context, sample models.RiderLocationSample) error
}

// Reader is the subset of kafka.Reader used by the consumer.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader   Reader
	ingester Ingester
	attempts int
	delay    time.Duration
	log      logger.Logger
}

func NewConsumer(brokers []string, topic, group string, ingester Ingester, log logger.Logger) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	if group == "" {
		group = DefaultGroup
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return NewConsumerWithReader(r, ingester, log)
}

func NewConsumerWithReader(r Reader, ingester Ingester, log logger.Logger) *Consumer {
	return &Consumer{
		reader:   r,
		ingester: ingester,
		attempts: 3,
		delay:    200 * time.Millisecond,
		log:      log,
	}
}

// Run consumes until ctx is cancelled. Offsets are committed after the sample is stored
// or found invalid, a sample failing every store attempt is skipped and logged.
func (c *Consumer) Run(ctx context.Context) error {
	ctx = wrap.WithAction(ctx, "consume_locations")
	c.log.Info(ctx, "location consumer started")

	backoff := minBackoff
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info(ctx, "location consumer stopped")
				return nil
			}
			c.log.Warn(ctx, "kafka fetch failed", "error", err.Error(), "backoff", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		c.handle(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.log.Warn(ctx, "failed to commit offset", "error", err.Error(), "offset", m.Offset)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var sample models.RiderLocationSample
	if err := json.Unmarshal(m.Value, &sample); err != nil {
		c.log.Warn(ctx, "invalid location message", "error", err.Error(), "offset", m.Offset)
		return
	}

	delay := c.delay
	for i := 1; ; i++ {
		err := c.ingester.Ingest(ctx, sample)
		if err == nil {
			return
		}
		if i == c.attempts || errors.Is(err, context.Canceled) {
			c.log.Error(wrap.ErrorCtx(ctx, err), "failed to store location sample", err, "rider_id", sample.RiderID)
			return
		}
		if !sleepCtx(ctx, delay) {
			return
		}
		delay *= 2
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
