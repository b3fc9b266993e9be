package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/Temutjin2k/ride-match/internal/adapter/memory"
	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLocationStore(time.Minute)
	now := time.Now().UTC()

	near := models.RiderLocationSample{RiderID: uuid.New(), Latitude: 14.5995, Longitude: 120.9842, CapturedAt: now}
	far := models.RiderLocationSample{RiderID: uuid.New(), Latitude: 14.6760, Longitude: 121.0437, CapturedAt: now}
	stale := models.RiderLocationSample{RiderID: uuid.New(), Latitude: 14.5996, Longitude: 120.9843, CapturedAt: now.Add(-time.Hour)}
	for _, s := range []models.RiderLocationSample{near, far, stale} {
		require.NoError(t, store.Save(ctx, s))
	}

	center := models.Location{Latitude: 14.5995, Longitude: 120.9842}

	riders, err := store.Nearby(ctx, center, 2, 10)
	require.NoError(t, err)
	require.Len(t, riders, 1)
	assert.Equal(t, near.RiderID, riders[0].RiderID)

	riders, err = store.Nearby(ctx, center, 50, 10)
	require.NoError(t, err)
	require.Len(t, riders, 2)
	assert.Equal(t, near.RiderID, riders[0].RiderID)
	assert.Equal(t, far.RiderID, riders[1].RiderID)

	riders, err = store.Nearby(ctx, center, 50, 1)
	require.NoError(t, err)
	assert.Len(t, riders, 1)

	_, err = store.Get(ctx, stale.RiderID)
	assert.ErrorIs(t, err, types.ErrLocationNotFound)

	// более старый сэмпл не перезаписывает новый
	require.NoError(t, store.Save(ctx, models.RiderLocationSample{RiderID: near.RiderID, Latitude: 0, Longitude: 0, CapturedAt: now.Add(-time.Second)}))
	got, err := store.Get(ctx, near.RiderID)
	require.NoError(t, err)
	assert.InDelta(t, near.Latitude, got.Latitude, 1e-9)
}
