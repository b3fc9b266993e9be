package memory

import (
	"context"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/google/uuid"
)

type ApplicationRepo struct {
	s *Store
}

func NewApplicationRepo(s *Store) *ApplicationRepo {
	return &ApplicationRepo{s: s}
}

// Apply checks the ride status under the ride lock, so it is ordered with transitions.
func (r *ApplicationRepo) Apply(_ context.Context, app *models.Application) (models.ApplicationResult, error) {
	var result models.ApplicationResult
	err := r.s.withRide(app.RideID, func(e *entry) error {
		if e.ride.Status != types.StatusAvailable {
			return types.ErrRideNotOpen
		}
		for _, existing := range e.apps {
			if existing.ApplierID == app.ApplierID && existing.Status != types.ApplicationSuperseded {
				result = models.ApplicationResult{Created: false, Application: cloneApp(existing)}
				return nil
			}
		}
		e.apps = append(e.apps, cloneApp(app))
		result = models.ApplicationResult{Created: true, Application: cloneApp(app)}
		return nil
	})
	return result, err
}

func (r *ApplicationRepo) Get(_ context.Context, rideID, applicationID uuid.UUID) (*models.Application, error) {
	var app *models.Application
	err := r.s.withRide(rideID, func(e *entry) error {
		for _, a := range e.apps {
			if a.ID == applicationID {
				app = cloneApp(a)
				return nil
			}
		}
		return types.ErrApplicationNotFound
	})
	return app, err
}

func (r *ApplicationRepo) List(_ context.Context, rideID uuid.UUID) ([]*models.Application, error) {
	var apps []*models.Application
	err := r.s.withRide(rideID, func(e *entry) error {
		apps = make([]*models.Application, 0, len(e.apps))
		for _, a := range e.apps {
			apps = append(apps, cloneApp(a))
		}
		return nil
	})
	return apps, err
}

func (r *ApplicationRepo) HasApplied(_ context.Context, rideID, riderID uuid.UUID) (bool, error) {
	var found bool
	err := r.s.withRide(rideID, func(e *entry) error {
		for _, a := range e.apps {
			if a.ApplierID == riderID {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (r *ApplicationRepo) ResolveMatch(_ context.Context, rideID, riderID uuid.UUID) (*models.Application, int, error) {
	var (
		accepted   *models.Application
		superseded int
	)
	err := r.s.withRide(rideID, func(e *entry) error {
		now := time.Now().UTC()
		for _, a := range e.apps {
			if a.Status != types.ApplicationPending {
				continue
			}
			a.UpdatedAt = now
			if a.ApplierID == riderID {
				a.Status = types.ApplicationAccepted
				accepted = cloneApp(a)
				continue
			}
			a.Status = types.ApplicationSuperseded
			superseded++
		}
		return nil
	})
	return accepted, superseded, err
}

// liveApplication is the applier's non-Superseded application, nil if none. Caller holds the ride lock.
func liveApplication(e *entry, applierID uuid.UUID) *models.Application {
	for _, a := range e.apps {
		if a.ApplierID == applierID && a.Status != types.ApplicationSuperseded {
			return a
		}
	}
	return nil
}

func (r *ApplicationRepo) Reject(_ context.Context, rideID, applicationID uuid.UUID) (*models.Application, error) {
	var app *models.Application
	err := r.s.withRide(rideID, func(e *entry) error {
		for _, a := range e.apps {
			if a.ID != applicationID {
				continue
			}
			if a.Status != types.ApplicationPending {
				return types.ErrApplicationNotPending
			}
			a.Status = types.ApplicationRejected
			a.UpdatedAt = time.Now().UTC()
			app = cloneApp(a)
			return nil
		}
		return types.ErrApplicationNotFound
	})
	return app, err
}
