package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	ridecalc "github.com/Temutjin2k/ride-match/internal/service/calculator"
	"github.com/google/uuid"
)

// LocationStore keeps the latest sample per rider. Samples older than maxAge are ignored.
type LocationStore struct {
	mu      sync.RWMutex
	samples map[uuid.UUID]models.RiderLocationSample
	maxAge  time.Duration
	now     func() time.Time
}

func NewLocationStore(maxAge time.Duration) *LocationStore {
	return &LocationStore{
		samples: make(map[uuid.UUID]models.RiderLocationSample),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Save keeps the sample unless a newer one is already stored.
func (s *LocationStore) Save(_ context.Context, sample models.RiderLocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.samples[sample.RiderID]; ok && cur.CapturedAt.After(sample.CapturedAt) {
		return nil
	}
	s.samples[sample.RiderID] = sample
	return nil
}

func (s *LocationStore) Get(_ context.Context, riderID uuid.UUID) (models.RiderLocationSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sample, ok := s.samples[riderID]
	if !ok || s.stale(sample) {
		return models.RiderLocationSample{}, types.ErrLocationNotFound
	}
	return sample, nil
}

func (s *LocationStore) Nearby(_ context.Context, center models.Location, radiusKm float64, limit int) ([]models.NearbyRider, error) {
	s.mu.RLock()
	out := make([]models.NearbyRider, 0)
	for _, sample := range s.samples {
		if s.stale(sample) {
			continue
		}
		d := ridecalc.Haversine(center.Latitude, center.Longitude, sample.Latitude, sample.Longitude)
		if d <= radiusKm {
			out = append(out, models.NearbyRider{RiderLocationSample: sample, DistanceKm: ridecalc.Round2(d)})
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.NearbyRider) int {
		switch {
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		}
		return a.CapturedAt.Compare(b.CapturedAt) * -1
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *LocationStore) stale(sample models.RiderLocationSample) bool {
	return s.maxAge > 0 && s.now().Sub(sample.CapturedAt) > s.maxAge
}
