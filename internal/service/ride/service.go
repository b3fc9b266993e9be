package ride

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
	"github.com/Temutjin2k/ride-match/pkg/trm"
	"github.com/Temutjin2k/ride-match/pkg/validator"
	"github.com/google/uuid"
)

const defaultPublishTimeout = 2 * time.Second

type repos struct {
	ride   RideRepo
	app    ApplicationRepo
	event  RideEventRepo
	review ReviewRepo
}

type infra struct {
	trm            trm.TxManager
	publisher      Publisher
	estimator      FareEstimator
	geocoder       GeoCoder
	publishTimeout time.Duration
}

type RideService struct {
	repos repos
	infra infra
	l     logger.Logger
}

// Repos groups the storage dependencies of the service.
type Repos struct {
	Ride        RideRepo
	Application ApplicationRepo
	Event       RideEventRepo
	Review      ReviewRepo
}

type Option func(*RideService)

// WithGeoCoder enables reverse geocoding of rides created without addresses.
func WithGeoCoder(g GeoCoder) Option {
	return func(s *RideService) {
		s.infra.geocoder = g
	}
}

func WithPublishTimeout(d time.Duration) Option {
	return func(s *RideService) {
		if d > 0 {
			s.infra.publishTimeout = d
		}
	}
}

func NewRideService(r Repos, trm trm.TxManager, publisher Publisher, estimator FareEstimator, l logger.Logger, opts ...Option) *RideService {
	s := &RideService{
		repos: repos{
			ride:   r.Ride,
			app:    r.Application,
			event:  r.Event,
			review: r.Review,
		},
		infra: infra{
			trm:            trm,
			publisher:      publisher,
			estimator:      estimator,
			publishTimeout: defaultPublishTimeout,
		},
		l: l,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create quotes and stores a new Available ride for the customer.
func (s *RideService) Create(ctx context.Context, id models.Identity, req models.RideRequest) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "create_ride")

	if !id.IsCustomer() {
		return nil, wrap.Error(ctx, types.ErrForbiddenRole)
	}
	if !validator.PermittedValue(req.RideType.String(), types.RideTypes...) {
		return nil, wrap.Error(ctx, fmt.Errorf("%w: unknown ride type %q", types.ErrValidation, req.RideType))
	}

	quote, err := s.infra.estimator.Quote(ctx, req.Pickup, req.Dropoff)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to quote ride: %w", err))
	}

	now := time.Now().UTC()
	ride := &models.Ride{
		ID:         uuid.New(),
		CustomerID: id.UserID,
		Pickup:     s.withAddress(ctx, *req.Pickup),
		Dropoff:    s.withAddress(ctx, *req.Dropoff),
		RideType:   req.RideType,
		Fare:       quote.Fare,
		DistanceKm: quote.DistanceKm,
		FareSource: quote.Source,
		Status:     types.StatusAvailable,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	ctx = wrap.WithRideID(ctx, ride.ID.String())

	event := models.NewRideEvent(ride, "", id.UserID)
	if err := s.infra.trm.Do(ctx, func(ctx context.Context) error {
		if err := s.repos.ride.Create(ctx, ride); err != nil {
			return err
		}
		return s.repos.event.Append(ctx, event)
	}); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to create ride: %w", err))
	}

	metrics.RidesCreatedTotal.WithLabelValues(ride.RideType.String()).Inc()
	s.l.Info(ctx, "ride created", "fare", ride.Fare, "distance_km", ride.DistanceKm, "fare_source", ride.FareSource)
	s.notify(ctx, event)

	return ride, nil
}

// withAddress fills a missing address with best effort, failures are only logged.
func (s *RideService) withAddress(ctx context.Context, loc models.Location) models.Location {
	if loc.Address != "" || s.infra.geocoder == nil {
		return loc
	}
	addr, err := s.infra.geocoder.GetAddress(ctx, loc)
	if err != nil {
		s.l.Warn(wrap.ErrorCtx(ctx, err), "failed to reverse geocode location", "error", err.Error())
		return loc
	}
	loc.Address = addr
	return loc
}

// Get returns the authoritative state of a ride.
func (s *RideService) Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "get_ride"), rideID.String())

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return ride, nil
}

// ListOpen returns Available rides, newest first. Only riders browse open rides.
func (s *RideService) ListOpen(ctx context.Context, id models.Identity) ([]*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "list_open_rides")

	if !id.IsRider() {
		return nil, wrap.Error(ctx, types.ErrForbiddenRole)
	}
	rides, err := s.repos.ride.ListOpen(ctx)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to list open rides: %w", err))
	}
	return rides, nil
}

// ActiveRide is the caller's non-terminal ride, ErrRideNotFound when there is none.
func (s *RideService) ActiveRide(ctx context.Context, id models.Identity) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "active_ride")

	var (
		ride *models.Ride
		err  error
	)
	switch id.Role {
	case types.CustomerRole:
		ride, err = s.repos.ride.GetActiveByCustomer(ctx, id.UserID)
	case types.RiderRole:
		ride, err = s.repos.ride.GetActiveByRider(ctx, id.UserID)
	default:
		return nil, wrap.Error(ctx, types.ErrForbiddenRole)
	}
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return ride, nil
}

// History lists rides where the caller is the customer or the assigned rider.
func (s *RideService) History(ctx context.Context, id models.Identity, filter models.HistoryFilter) ([]*models.Ride, models.Metadata, error) {
	ctx = wrap.WithAction(ctx, "ride_history")

	if !id.Role.Valid() {
		return nil, models.Metadata{}, wrap.Error(ctx, types.ErrForbiddenRole)
	}

	rides, total, err := s.repos.ride.History(ctx, id.Role, id.UserID, filter)
	if err != nil {
		return nil, models.Metadata{}, wrap.Error(ctx, fmt.Errorf("failed to load ride history: %w", err))
	}
	return rides, models.CalculateMetadata(total, filter.Page, filter.PageSize), nil
}

// Relist opens a new ride copying a cancelled one. The cancelled ride itself is never reopened.
func (s *RideService) Relist(ctx context.Context, id models.Identity, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "relist_ride"), rideID.String())

	old, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !old.IsCustomer(id.UserID) {
		return nil, wrap.Error(ctx, types.ErrNotRideParticipant)
	}
	if old.Status != types.StatusCancelled {
		return nil, wrap.Error(ctx, types.ErrRideNotCancelled)
	}

	pickup, dropoff := old.Pickup, old.Dropoff
	return s.Create(ctx, id, models.RideRequest{
		Pickup:   &pickup,
		Dropoff:  &dropoff,
		RideType: old.RideType,
	})
}

// Quote returns distance and fare without creating a ride.
func (s *RideService) Quote(ctx context.Context, pickup, dropoff *models.Location) (models.FareQuote, error) {
	return s.infra.estimator.Quote(ctx, pickup, dropoff)
}

func (s *RideService) FarePolicy() ridecalc.Policy {
	return s.infra.estimator.Policy()
}
