package ride

import (
	"context"
	"errors"
	"fmt"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/Temutjin2k/ride-match/pkg/metrics"
	"github.com/google/uuid"
)

const (
	matchPathAccept  = "accept"
	matchPathApprove = "approve"
)

// Accept assigns the calling rider to an Available ride. Among concurrent callers exactly one
// wins, the others get ErrRideNoLongerAvailable and are not retried.
func (s *RideService) Accept(ctx context.Context, id models.Identity, rideID uuid.UUID) (*models.MatchResult, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "accept_ride"), rideID.String())

	if !id.IsRider() {
		return nil, wrap.Error(ctx, types.ErrForbiddenRole)
	}

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if ride.IsCustomer(id.UserID) {
		return nil, wrap.Error(ctx, types.ErrOwnRide)
	}

	return s.assign(ctx, matchPathAccept, ride, models.Transition{ActorID: id.UserID, AssignedRiderID: &id.UserID})
}

// Approve assigns the applier of a Pending application. Customer of the ride only.
// It goes through the same guarded assignment as Accept, which rechecks the application
// under the ride's lock, so a concurrent Reject wins or loses as a whole.
func (s *RideService) Approve(ctx context.Context, id models.Identity, rideID, applicationID uuid.UUID) (*models.MatchResult, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "approve_application"), rideID.String())
	ctx = wrap.WithApplicationID(ctx, applicationID.String())

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !ride.IsCustomer(id.UserID) {
		return nil, wrap.Error(ctx, types.ErrNotRideParticipant)
	}

	app, err := s.repos.app.Get(ctx, rideID, applicationID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if app.Status != types.ApplicationPending {
		return nil, wrap.Error(ctx, fmt.Errorf("%w: status is %s", types.ErrApplicationNotPending, app.Status))
	}

	return s.assign(ctx, matchPathApprove, ride, models.Transition{
		ActorID:         id.UserID,
		AssignedRiderID: &app.ApplierID,
		ApplicationID:   &app.ID,
	})
}

// assign is the single guarded Available -> Booked path.
// The store refuses a rider whose application was rejected.
func (s *RideService) assign(ctx context.Context, path string, ride *models.Ride, t models.Transition) (*models.MatchResult, error) {
	riderID := *t.AssignedRiderID

	if ride.Status != types.StatusAvailable {
		metrics.MatchAttemptsTotal.WithLabelValues(path, "lost").Inc()
		return nil, wrap.Error(ctx, types.ErrRideNoLongerAvailable)
	}

	result := &models.MatchResult{}
	updated, err := s.transition(ctx, ride, types.ActionAssign, t, func(ctx context.Context, updated *models.Ride) error {
		accepted, superseded, err := s.repos.app.ResolveMatch(ctx, updated.ID, riderID)
		if err != nil {
			return fmt.Errorf("failed to resolve applications: %w", err)
		}
		result.Accepted = accepted
		result.Superseded = superseded
		return nil
	})
	switch {
	case errors.Is(err, types.ErrStaleState):
		metrics.MatchAttemptsTotal.WithLabelValues(path, "lost").Inc()
		return nil, wrap.Error(ctx, types.ErrRideNoLongerAvailable)
	case errors.Is(err, types.ErrRiderBusy):
		metrics.MatchAttemptsTotal.WithLabelValues(path, "busy").Inc()
		return nil, err
	case errors.Is(err, types.ErrApplicationNotPending):
		metrics.MatchAttemptsTotal.WithLabelValues(path, "rejected").Inc()
		return nil, err
	case err != nil:
		metrics.MatchAttemptsTotal.WithLabelValues(path, "error").Inc()
		return nil, err
	}

	result.Ride = updated
	metrics.MatchAttemptsTotal.WithLabelValues(path, "won").Inc()
	s.l.Info(ctx, "rider assigned to ride", "rider_id", riderID, "superseded_applications", result.Superseded)

	return result, nil
}
