package location

import (
	"context"
	"fmt"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	ridecalc "github.com/Temutjin2k/ride-match/internal/service/calculator"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/Temutjin2k/ride-match/pkg/metrics"
	"github.com/google/uuid"
)

const (
	DefaultRadiusKm = 5.0
	MaxRadiusKm     = 50.0
	DefaultLimit    = 20
	MaxLimit        = 100

	// сэмпл из будущего допускаем с небольшим запасом на рассинхрон часов
	maxClockSkew = time.Minute
)

// Store keeps the latest sample per rider.
type Store interface {
	Save(ctx context.Context, sample models.RiderLocationSample) error
	Get(ctx context.Context, riderID uuid.UUID) (models.RiderLocationSample, error)
	Nearby(ctx context.Context, center models.Location, radiusKm float64, limit int) ([]models.NearbyRider, error)
}

// Sink is where recorded samples go: the store itself or a stream feeding it.
type Sink interface {
	Save(ctx context.Context, sample models.RiderLocationSample) error
}

type Service struct {
	sink     Sink
	sinkName string
	store    Store
	now      func() time.Time
	l        logger.Logger
}

// New creates the location service. A nil sink means samples go straight to the store.
func New(store Store, sink Sink, sinkName string, l logger.Logger) *Service {
	if sink == nil {
		sink, sinkName = store, "store"
	}
	return &Service{
		sink:     sink,
		sinkName: sinkName,
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		l:        l,
	}
}

// Record saves the rider's current position. Only riders report samples.
func (s *Service) Record(ctx context.Context, id models.Identity, lat, lng float64, capturedAt time.Time) (models.RiderLocationSample, error) {
	ctx = wrap.WithAction(ctx, "record_location")

	if !id.IsRider() {
		return models.RiderLocationSample{}, wrap.Error(ctx, types.ErrForbiddenRole)
	}
	if err := ridecalc.ValidateCoordinate(lat, lng); err != nil {
		return models.RiderLocationSample{}, wrap.Error(ctx, err)
	}

	now := s.now()
	if capturedAt.IsZero() {
		capturedAt = now
	}
	if capturedAt.After(now.Add(maxClockSkew)) {
		return models.RiderLocationSample{}, wrap.Error(ctx, fmt.Errorf("%w: captured_at is in the future", types.ErrValidation))
	}

	sample := models.RiderLocationSample{
		RiderID:    id.UserID,
		Latitude:   lat,
		Longitude:  lng,
		CapturedAt: capturedAt.UTC(),
	}

	err := s.sink.Save(ctx, sample)
	metrics.RecordLocationSample(s.sinkName, err)
	if err != nil {
		return models.RiderLocationSample{}, wrap.Error(ctx, fmt.Errorf("failed to record location sample: %w", err))
	}

	s.l.Debug(ctx, "location sample recorded", "sink", s.sinkName)
	return sample, nil
}

// Ingest writes a sample received from the stream into the store.
func (s *Service) Ingest(ctx context.Context, sample models.RiderLocationSample) error {
	ctx = wrap.WithUserID(wrap.WithAction(ctx, "ingest_location"), sample.RiderID.String())

	if sample.RiderID == uuid.Nil {
		return wrap.Error(ctx, fmt.Errorf("%w: rider_id is required", types.ErrValidation))
	}
	if err := ridecalc.ValidateCoordinate(sample.Latitude, sample.Longitude); err != nil {
		return wrap.Error(ctx, err)
	}

	err := s.store.Save(ctx, sample)
	metrics.RecordLocationSample("store", err)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("failed to store location sample: %w", err))
	}
	return nil
}

// Get returns the latest sample of a rider.
func (s *Service) Get(ctx context.Context, riderID uuid.UUID) (models.RiderLocationSample, error) {
	ctx = wrap.WithAction(ctx, "get_location")

	sample, err := s.store.Get(ctx, riderID)
	if err != nil {
		return models.RiderLocationSample{}, wrap.Error(ctx, err)
	}
	return sample, nil
}

// Nearby lists riders around center ordered by distance.
// Zero radius and limit fall back to defaults.
func (s *Service) Nearby(ctx context.Context, center models.Location, radiusKm float64, limit int) ([]models.NearbyRider, error) {
	ctx = wrap.WithAction(ctx, "nearby_riders")

	if err := ridecalc.ValidateCoordinate(center.Latitude, center.Longitude); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	if radiusKm == 0 {
		radiusKm = DefaultRadiusKm
	}
	if radiusKm < 0 || radiusKm > MaxRadiusKm {
		return nil, wrap.Error(ctx, fmt.Errorf("%w: radius_km must be in (0, %v]", types.ErrValidation, MaxRadiusKm))
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 || limit > MaxLimit {
		return nil, wrap.Error(ctx, fmt.Errorf("%w: limit must be in (0, %d]", types.ErrValidation, MaxLimit))
	}

	riders, err := s.store.Nearby(ctx, center, radiusKm, limit)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to search nearby riders: %w", err))
	}
	return riders, nil
}
