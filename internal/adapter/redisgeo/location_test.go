package redisgeo_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Temutjin2k/ride-match/internal/adapter/redisgeo"
	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, maxAge time.Duration) *redisgeo.LocationStore {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}

	client, err := redisgeo.Connect(context.Background(), addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	key := "test:riders:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	return redisgeo.NewLocationStore(client, key, maxAge)
}

func TestLocationStore_SaveGetNearby(t *testing.T) {
	store := newStore(t, time.Minute)
	ctx := context.Background()

	near := models.RiderLocationSample{RiderID: uuid.New(), Latitude: 14.5995, Longitude: 120.9842, CapturedAt: time.Now().UTC()}
	far := models.RiderLocationSample{RiderID: uuid.New(), Latitude: 14.6760, Longitude: 121.0437, CapturedAt: time.Now().UTC()}
	require.NoError(t, store.Save(ctx, near))
	require.NoError(t, store.Save(ctx, far))

	got, err := store.Get(ctx, near.RiderID)
	require.NoError(t, err)
	assert.InDelta(t, near.Latitude, got.Latitude, 1e-9)

	riders, err := store.Nearby(ctx, models.Location{Latitude: 14.5995, Longitude: 120.9842}, 2, 10)
	require.NoError(t, err)
	require.Len(t, riders, 1)
	assert.Equal(t, near.RiderID, riders[0].RiderID)

	riders, err = store.Nearby(ctx, models.Location{Latitude: 14.5995, Longitude: 120.9842}, 20, 10)
	require.NoError(t, err)
	require.Len(t, riders, 2)
	assert.Equal(t, near.RiderID, riders[0].RiderID)
}

func TestLocationStore_OlderSampleIgnored(t *testing.T) {
	store := newStore(t, time.Minute)
	ctx := context.Background()
	riderID := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, models.RiderLocationSample{RiderID: riderID, Latitude: 1, Longitude: 1, CapturedAt: now}))
	require.NoError(t, store.Save(ctx, models.RiderLocationSample{RiderID: riderID, Latitude: 2, Longitude: 2, CapturedAt: now.Add(-time.Second)}))

	got, err := store.Get(ctx, riderID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.Latitude, 1e-9)
}

func TestLocationStore_GetMissing(t *testing.T) {
	store := newStore(t, time.Minute)
	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, types.ErrLocationNotFound)
}

func TestLocationStore_StaleByCaptureTime(t *testing.T) {
	store := newStore(t, 2*time.Minute)
	ctx := context.Background()
	center := models.Location{Latitude: 14.5995, Longitude: 120.9842}

	late := models.RiderLocationSample{RiderID: uuid.New(), Latitude: 14.5995, Longitude: 120.9842, CapturedAt: time.Now().UTC().Add(-10 * time.Minute)}
	require.NoError(t, store.Save(ctx, late))

	_, err := store.Get(ctx, late.RiderID)
	assert.ErrorIs(t, err, types.ErrLocationNotFound)
	riders, err := store.Nearby(ctx, center, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, riders)
}

func TestLocationStore_ExpiresFromCaptureTime(t *testing.T) {
	store := newStore(t, 2*time.Second)
	ctx := context.Background()
	center := models.Location{Latitude: 14.5995, Longitude: 120.9842}

	sample := models.RiderLocationSample{RiderID: uuid.New(), Latitude: 14.5995, Longitude: 120.9842, CapturedAt: time.Now().UTC().Add(-time.Second)}
	require.NoError(t, store.Save(ctx, sample))

	_, err := store.Get(ctx, sample.RiderID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, sample.RiderID)
		return errors.Is(err, types.ErrLocationNotFound)
	}, 3*time.Second, 50*time.Millisecond)

	riders, err := store.Nearby(ctx, center, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, riders)
}
