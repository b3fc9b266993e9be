package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader отдает сообщения по очереди, потом блокируется до отмены контекста
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeIngester struct {
	mu    sync.Mutex
	fails int
	calls int
	got   []models.RiderLocationSample
}

func (f *fakeIngester) Ingest(_ context.Context, s models.RiderLocationSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fails {
		return errors.New("redis down")
	}
	f.got = append(f.got, s)
	return nil
}

func (f *fakeIngester) samples() []models.RiderLocationSample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RiderLocationSample(nil), f.got...)
}

func message(t *testing.T, offset int64, s models.RiderLocationSample) kafka.Message {
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestConsumer_RetriesAndCommits(t *testing.T) {
	sample := models.RiderLocationSample{RiderID: uuid.New(), Latitude: 14.6, Longitude: 121, CapturedAt: time.Now().UTC()}
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte("{not json")},
		message(t, 2, sample),
	}}
	ingester := &fakeIngester{fails: 1}

	c := NewConsumerWithReader(reader, ingester, logger.New(io.Discard, "test", logger.LevelError))
	c.delay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	got := ingester.samples()
	require.Len(t, got, 1)
	assert.Equal(t, sample.RiderID, got[0].RiderID)
	assert.Equal(t, []int64{1, 2}, reader.commits())
}
