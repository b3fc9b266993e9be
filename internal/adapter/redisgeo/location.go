package redisgeo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	ridecalc "github.com/Temutjin2k/ride-match/internal/service/calculator"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultGeoKey = "riders:locations"

	sampleKeyPrefix = "rider:location:"
)

// LocationStore keeps rider samples in a GEO set plus a hash per rider.
// The hash expires maxAge after the sample was captured, a GEO member without its hash is treated as stale.
type LocationStore struct {
	client *redis.Client
	geoKey string
	maxAge time.Duration
	now    func() time.Time
}

func NewLocationStore(client *redis.Client, geoKey string, maxAge time.Duration) *LocationStore {
	if geoKey == "" {
		geoKey = DefaultGeoKey
	}
	return &LocationStore{
		client: client,
		geoKey: geoKey,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func sampleKey(riderID string) string { return sampleKeyPrefix + riderID }

// stale reports whether a sample is older than maxAge by its capture time.
func (s *LocationStore) stale(capturedAt time.Time) bool {
	return s.maxAge > 0 && s.now().Sub(capturedAt) > s.maxAge
}

// Save writes the sample unless a newer one is stored. Samples that are already stale are dropped.
func (s *LocationStore) Save(ctx context.Context, sample models.RiderLocationSample) error {
	id := sample.RiderID.String()
	if s.stale(sample.CapturedAt) {
		return nil
	}

	cur, err := s.client.HGet(ctx, sampleKey(id), "captured_at").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read current sample: %w", err)
	}
	if err == nil {
		if ts, perr := time.Parse(time.RFC3339Nano, cur); perr == nil && ts.After(sample.CapturedAt) {
			return nil
		}
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.GeoAdd(ctx, s.geoKey, &redis.GeoLocation{
			Name:      id,
			Longitude: sample.Longitude,
			Latitude:  sample.Latitude,
		})
		p.HSet(ctx, sampleKey(id), map[string]any{
			"lat":         strconv.FormatFloat(sample.Latitude, 'f', -1, 64),
			"lng":         strconv.FormatFloat(sample.Longitude, 'f', -1, 64),
			"captured_at": sample.CapturedAt.UTC().Format(time.RFC3339Nano),
		})
		if s.maxAge > 0 {
			p.PExpireAt(ctx, sampleKey(id), sample.CapturedAt.Add(s.maxAge))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save location sample: %w", err)
	}
	return nil
}

func (s *LocationStore) Get(ctx context.Context, riderID uuid.UUID) (models.RiderLocationSample, error) {
	m, err := s.client.HGetAll(ctx, sampleKey(riderID.String())).Result()
	if err != nil {
		return models.RiderLocationSample{}, fmt.Errorf("failed to get location sample: %w", err)
	}
	if len(m) == 0 {
		return models.RiderLocationSample{}, types.ErrLocationNotFound
	}
	sample, err := parseSample(riderID, m)
	if err != nil {
		return models.RiderLocationSample{}, err
	}
	if s.stale(sample.CapturedAt) {
		return models.RiderLocationSample{}, types.ErrLocationNotFound
	}
	return sample, nil
}

func (s *LocationStore) Nearby(ctx context.Context, center models.Location, radiusKm float64, limit int) ([]models.NearbyRider, error) {
	// берем с запасом, часть участников может оказаться устаревшей
	res, err := s.client.GeoSearchLocation(ctx, s.geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Longitude,
			Latitude:   center.Latitude,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit * 2,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to search nearby riders: %w", err)
	}

	out := make([]models.NearbyRider, 0, min(len(res), limit))
	var staleMembers []any
	for _, g := range res {
		if len(out) == limit {
			break
		}
		riderID, err := uuid.Parse(g.Name)
		if err != nil {
			continue
		}

		m, err := s.client.HGetAll(ctx, sampleKey(g.Name)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load location sample: %w", err)
		}
		if len(m) == 0 {
			staleMembers = append(staleMembers, g.Name)
			continue
		}

		sample, err := parseSample(riderID, m)
		if err != nil || s.stale(sample.CapturedAt) {
			continue
		}
		out = append(out, models.NearbyRider{RiderLocationSample: sample, DistanceKm: ridecalc.Round2(g.Dist)})
	}

	if len(staleMembers) > 0 {
		// best effort, следующий запрос попробует снова
		s.client.ZRem(ctx, s.geoKey, staleMembers...)
	}
	return out, nil
}

func (s *LocationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func parseSample(riderID uuid.UUID, m map[string]string) (models.RiderLocationSample, error) {
	lat, err := strconv.ParseFloat(m["lat"], 64)
	if err != nil {
		return models.RiderLocationSample{}, fmt.Errorf("invalid stored latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(m["lng"], 64)
	if err != nil {
		return models.RiderLocationSample{}, fmt.Errorf("invalid stored longitude: %w", err)
	}
	capturedAt, err := time.Parse(time.RFC3339Nano, m["captured_at"])
	if err != nil {
		return models.RiderLocationSample{}, fmt.Errorf("invalid stored captured_at: %w", err)
	}
	return models.RiderLocationSample{
		RiderID:    riderID,
		Latitude:   lat,
		Longitude:  lng,
		CapturedAt: capturedAt,
	}, nil
}
