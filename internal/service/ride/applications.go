package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	ridecalc "github.com/Temutjin2k/ride-match/internal/service/calculator"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/Temutjin2k/ride-match/pkg/metrics"
	"github.com/google/uuid"
)

// Apply registers the rider's interest in an Available ride.
// Applying again returns the existing application with Created=false.
func (s *RideService) Apply(ctx context.Context, id models.Identity, rideID uuid.UUID, loc models.Location) (models.ApplicationResult, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "apply_ride"), rideID.String())

	if !id.IsRider() {
		return models.ApplicationResult{}, wrap.Error(ctx, types.ErrForbiddenRole)
	}
	if err := ridecalc.ValidateCoordinate(loc.Latitude, loc.Longitude); err != nil {
		return models.ApplicationResult{}, wrap.Error(ctx, err)
	}

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return models.ApplicationResult{}, wrap.Error(ctx, err)
	}
	if ride.IsCustomer(id.UserID) {
		return models.ApplicationResult{}, wrap.Error(ctx, types.ErrOwnRide)
	}

	now := time.Now().UTC()
	app := &models.Application{
		ID:              uuid.New(),
		RideID:          rideID,
		ApplierID:       id.UserID,
		ApplierLocation: loc,
		Status:          types.ApplicationPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var result models.ApplicationResult
	err = s.infra.trm.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.repos.app.Apply(ctx, app)
		return err
	})
	if err != nil {
		if errors.Is(err, types.ErrRideNotOpen) {
			metrics.ApplicationsTotal.WithLabelValues("not_open").Inc()
		}
		return models.ApplicationResult{}, wrap.Error(ctx, fmt.Errorf("failed to apply: %w", err))
	}

	ctx = wrap.WithApplicationID(ctx, result.Application.ID.String())
	if result.Created {
		metrics.ApplicationsTotal.WithLabelValues("created").Inc()
		s.l.Info(ctx, "rider applied to ride")
	} else {
		metrics.ApplicationsTotal.WithLabelValues("exists").Inc()
		s.l.Debug(ctx, "rider already applied to ride", "status", result.Application.Status)
	}

	return result, nil
}

// ListApplications returns the ride's applications except the requester's own.
// Superseded applications are hidden unless includeSuperseded is set.
// Only the ride's participants and its applicants may list them.
func (s *RideService) ListApplications(ctx context.Context, id models.Identity, rideID uuid.UUID, includeSuperseded bool) ([]*models.Application, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "list_applications"), rideID.String())

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !ride.IsParticipant(id.UserID) {
		applied, err := s.repos.app.HasApplied(ctx, rideID, id.UserID)
		if err != nil {
			return nil, wrap.Error(ctx, fmt.Errorf("failed to check application: %w", err))
		}
		if !applied {
			return nil, wrap.Error(ctx, types.ErrNotRideParticipant)
		}
	}

	apps, err := s.repos.app.List(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to list applications: %w", err))
	}

	visible := make([]*models.Application, 0, len(apps))
	for _, app := range apps {
		if app.ApplierID == id.UserID {
			continue
		}
		if app.Status == types.ApplicationSuperseded && !includeSuperseded {
			continue
		}
		visible = append(visible, app)
	}
	return visible, nil
}

// Reject marks a Pending application Rejected. Customer of the ride only.
func (s *RideService) Reject(ctx context.Context, id models.Identity, rideID, applicationID uuid.UUID) (*models.Application, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "reject_application"), rideID.String())
	ctx = wrap.WithApplicationID(ctx, applicationID.String())

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !ride.IsCustomer(id.UserID) {
		return nil, wrap.Error(ctx, types.ErrNotRideParticipant)
	}

	app, err := s.repos.app.Reject(ctx, rideID, applicationID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	s.l.Info(ctx, "application rejected", "applier_id", app.ApplierID)
	return app, nil
}
