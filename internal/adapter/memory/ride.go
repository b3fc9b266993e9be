package memory

import (
	"context"
	"slices"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/google/uuid"
)

type RideRepo struct {
	s *Store
}

func NewRideRepo(s *Store) *RideRepo {
	return &RideRepo{s: s}
}

func (r *RideRepo) Create(_ context.Context, ride *models.Ride) error {
	if _, loaded := r.s.customers.LoadOrStore(ride.CustomerID, ride.ID); loaded {
		return types.ErrActiveRideExists
	}
	r.s.rides.Store(ride.ID, &entry{ride: ride.Clone()})
	return nil
}

func (r *RideRepo) Get(_ context.Context, rideID uuid.UUID) (*models.Ride, error) {
	return r.s.snapshot(rideID)
}

func (r *RideRepo) Transition(_ context.Context, t models.Transition) (*models.Ride, error) {
	var updated *models.Ride
	err := r.s.withRide(t.RideID, func(e *entry) error {
		if e.ride.Status != t.From {
			return types.ErrStaleState
		}

		if t.Assigns() {
			if err := t.CheckWinner(liveApplication(e, *t.AssignedRiderID)); err != nil {
				return err
			}
			holder, loaded := r.s.riders.LoadOrStore(*t.AssignedRiderID, t.RideID)
			if loaded && holder.(uuid.UUID) != t.RideID {
				return types.ErrRiderBusy
			}
		}

		prevRider := e.ride.AssignedRiderID
		ride := e.ride.Clone()
		ride.Status = t.To
		ride.AssignedRiderID = nil
		if t.AssignedRiderID != nil {
			id := *t.AssignedRiderID
			ride.AssignedRiderID = &id
		}
		ride.Version++
		ride.UpdatedAt = time.Now().UTC()
		e.ride = ride

		if prevRider != nil && (t.To.IsTerminal() || ride.AssignedRiderID == nil) {
			r.s.riders.CompareAndDelete(*prevRider, t.RideID)
		}
		if t.To.IsTerminal() {
			r.s.customers.CompareAndDelete(ride.CustomerID, t.RideID)
		}

		updated = ride.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func newestFirst(a, b *models.Ride) int {
	return b.CreatedAt.Compare(a.CreatedAt)
}

func (r *RideRepo) ListOpen(_ context.Context) ([]*models.Ride, error) {
	rides := make([]*models.Ride, 0)
	r.s.each(func(ride *models.Ride) {
		if ride.Status == types.StatusAvailable {
			rides = append(rides, ride)
		}
	})
	slices.SortFunc(rides, newestFirst)
	return rides, nil
}

func (r *RideRepo) activeBy(index interface{ Load(any) (any, bool) }, userID uuid.UUID) (*models.Ride, error) {
	v, ok := index.Load(userID)
	if !ok {
		return nil, types.ErrRideNotFound
	}
	return r.s.snapshot(v.(uuid.UUID))
}

func (r *RideRepo) GetActiveByCustomer(_ context.Context, customerID uuid.UUID) (*models.Ride, error) {
	return r.activeBy(&r.s.customers, customerID)
}

func (r *RideRepo) GetActiveByRider(_ context.Context, riderID uuid.UUID) (*models.Ride, error) {
	return r.activeBy(&r.s.riders, riderID)
}

func (r *RideRepo) History(_ context.Context, role types.UserRole, userID uuid.UUID, filter models.HistoryFilter) ([]*models.Ride, int, error) {
	rides := make([]*models.Ride, 0)
	r.s.each(func(ride *models.Ride) {
		switch role {
		case types.CustomerRole:
			if !ride.IsCustomer(userID) {
				return
			}
		case types.RiderRole:
			if !ride.IsAssigned(userID) {
				return
			}
		default:
			return
		}
		if filter.Status != "" && ride.Status != filter.Status {
			return
		}
		rides = append(rides, ride)
	})
	slices.SortFunc(rides, newestFirst)

	total := len(rides)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit(), total)
	return rides[start:end], total, nil
}
