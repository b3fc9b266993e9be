package location_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Temutjin2k/ride-match/internal/adapter/memory"
	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/internal/service/location"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkFunc func(ctx context.Context, s models.RiderLocationSample) error

func (f sinkFunc) Save(ctx context.Context, s models.RiderLocationSample) error { return f(ctx, s) }

var (
	_ location.Store = (*memory.LocationStore)(nil)
	_ location.Sink  = sinkFunc(nil)
)

var nopLog = logger.New(io.Discard, "test", logger.LevelError)

func TestRecord_DirectToStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLocationStore(time.Minute)
	svc := location.New(store, nil, "", nopLog)
	rider := models.Identity{UserID: uuid.New(), Role: types.RiderRole}

	sample, err := svc.Record(ctx, rider, 14.6, 121.0, time.Time{})
	require.NoError(t, err)
	assert.False(t, sample.CapturedAt.IsZero())

	got, err := svc.Get(ctx, rider.UserID)
	require.NoError(t, err)
	assert.Equal(t, rider.UserID, got.RiderID)

	nearby, err := svc.Nearby(ctx, models.Location{Latitude: 14.6, Longitude: 121.0}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, nearby, 1)
}

func TestRecord_Validation(t *testing.T) {
	svc := location.New(memory.NewLocationStore(time.Minute), nil, "", nopLog)
	rider := models.Identity{UserID: uuid.New(), Role: types.RiderRole}
	ctx := context.Background()

	_, err := svc.Record(ctx, models.Identity{UserID: uuid.New(), Role: types.CustomerRole}, 1, 1, time.Time{})
	assert.ErrorIs(t, err, types.ErrForbiddenRole)

	_, err = svc.Record(ctx, rider, 91, 1, time.Time{})
	assert.ErrorIs(t, err, types.ErrInvalidCoordinate)

	_, err = svc.Record(ctx, rider, 1, 1, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestRecord_ThroughSink(t *testing.T) {
	var sent []models.RiderLocationSample
	sink := sinkFunc(func(_ context.Context, s models.RiderLocationSample) error {
		sent = append(sent, s)
		return nil
	})
	store := memory.NewLocationStore(time.Minute)
	svc := location.New(store, sink, "kafka", nopLog)
	rider := models.Identity{UserID: uuid.New(), Role: types.RiderRole}

	_, err := svc.Record(context.Background(), rider, 14.6, 121.0, time.Time{})
	require.NoError(t, err)
	require.Len(t, sent, 1)

	// до консьюмера в хранилище ничего нет
	_, err = svc.Get(context.Background(), rider.UserID)
	assert.ErrorIs(t, err, types.ErrLocationNotFound)

	require.NoError(t, svc.Ingest(context.Background(), sent[0]))
	_, err = svc.Get(context.Background(), rider.UserID)
	assert.NoError(t, err)
}

func TestRecord_SinkFailure(t *testing.T) {
	sink := sinkFunc(func(context.Context, models.RiderLocationSample) error { return errors.New("broker down") })
	svc := location.New(memory.NewLocationStore(time.Minute), sink, "kafka", nopLog)

	_, err := svc.Record(context.Background(), models.Identity{UserID: uuid.New(), Role: types.RiderRole}, 1, 1, time.Time{})
	assert.Error(t, err)
}

func TestIngest_RejectsInvalid(t *testing.T) {
	svc := location.New(memory.NewLocationStore(time.Minute), nil, "", nopLog)

	err := svc.Ingest(context.Background(), models.RiderLocationSample{Latitude: 1, Longitude: 1})
	assert.ErrorIs(t, err, types.ErrValidation)

	err = svc.Ingest(context.Background(), models.RiderLocationSample{RiderID: uuid.New(), Latitude: 100})
	assert.ErrorIs(t, err, types.ErrInvalidCoordinate)
}

func TestNearby_Bounds(t *testing.T) {
	svc := location.New(memory.NewLocationStore(time.Minute), nil, "", nopLog)
	center := models.Location{Latitude: 1, Longitude: 1}

	_, err := svc.Nearby(context.Background(), center, location.MaxRadiusKm+1, 10)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = svc.Nearby(context.Background(), center, 1, location.MaxLimit+1)
	assert.ErrorIs(t, err, types.ErrValidation)
}
