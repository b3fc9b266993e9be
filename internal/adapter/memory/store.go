// Package memory keeps rides in process memory. Every ride owns its own lock,
// so transitions of different rides never contend.
package memory

import (
	"sync"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/google/uuid"
)

type entry struct {
	mu     sync.Mutex
	ride   *models.Ride
	apps   []*models.Application
	events []models.RideEvent
	review *models.Review
}

// Store is shared by the memory repositories.
type Store struct {
	rides     sync.Map // uuid.UUID -> *entry
	customers sync.Map // customer id -> id of the customer's non-terminal ride
	riders    sync.Map // rider id -> id of the Booked or In Transit ride
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) entry(rideID uuid.UUID) (*entry, error) {
	v, ok := s.rides.Load(rideID)
	if !ok {
		return nil, types.ErrRideNotFound
	}
	return v.(*entry), nil
}

// withRide runs fn holding the ride's lock.
func (s *Store) withRide(rideID uuid.UUID, fn func(e *entry) error) error {
	e, err := s.entry(rideID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e)
}

func (s *Store) snapshot(rideID uuid.UUID) (*models.Ride, error) {
	var ride *models.Ride
	err := s.withRide(rideID, func(e *entry) error {
		ride = e.ride.Clone()
		return nil
	})
	return ride, err
}

// each visits a snapshot of every ride.
func (s *Store) each(fn func(r *models.Ride)) {
	s.rides.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		r := e.ride.Clone()
		e.mu.Unlock()
		fn(r)
		return true
	})
}

func cloneApp(a *models.Application) *models.Application {
	c := *a
	return &c
}
