package ride

import (
	"context"
	"fmt"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/Temutjin2k/ride-match/pkg/metrics"
	"github.com/google/uuid"
)

// Start moves a Booked ride to In Transit. Customer or assigned rider.
func (s *RideService) Start(ctx context.Context, id models.Identity, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "start_ride"), rideID.String())

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !ride.IsParticipant(id.UserID) {
		return nil, wrap.Error(ctx, types.ErrNotRideParticipant)
	}

	updated, err := s.transition(ctx, ride, types.ActionStart, models.Transition{ActorID: id.UserID, AssignedRiderID: ride.AssignedRiderID}, nil)
	if err != nil {
		return nil, err
	}

	s.l.Info(ctx, "ride started", "version", updated.Version)
	return updated, nil
}

// Complete finishes an In Transit ride. Assigned rider only.
func (s *RideService) Complete(ctx context.Context, id models.Identity, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "complete_ride"), rideID.String())

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !ride.IsAssigned(id.UserID) {
		return nil, wrap.Error(ctx, types.ErrNotRideParticipant)
	}

	updated, err := s.transition(ctx, ride, types.ActionComplete, models.Transition{ActorID: id.UserID, AssignedRiderID: ride.AssignedRiderID}, nil)
	if err != nil {
		return nil, err
	}

	s.l.Info(ctx, "ride completed", "version", updated.Version)
	return updated, nil
}

// Cancel cancels an Available or Booked ride and releases the assigned rider.
// The customer may cancel in both states, the assigned rider only while Booked.
func (s *RideService) Cancel(ctx context.Context, id models.Identity, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "cancel_ride"), rideID.String())

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !ride.IsParticipant(id.UserID) {
		return nil, wrap.Error(ctx, types.ErrNotRideParticipant)
	}
	if !ride.IsCustomer(id.UserID) && ride.Status != types.StatusBooked {
		return nil, wrap.Error(ctx, fmt.Errorf("%w: rider can only cancel a booked ride", types.ErrInvalidTransition))
	}

	updated, err := s.transition(ctx, ride, types.ActionCancel, models.Transition{ActorID: id.UserID}, nil)
	if err != nil {
		return nil, err
	}

	s.l.Info(ctx, "ride cancelled", "version", updated.Version, "from", ride.Status)
	return updated, nil
}

// transition validates action against the lifecycle table and commits it as a CAS on the
// status that was read. t carries the actor and the rider, the ride and statuses are filled in here.
// after runs in the same unit of work as the status change.
// The resulting event is published once the unit of work commits.
func (s *RideService) transition(
	ctx context.Context,
	ride *models.Ride,
	action types.RideAction,
	t models.Transition,
	after func(ctx context.Context, updated *models.Ride) error,
) (*models.Ride, error) {
	to, ok := types.NextStatus(ride.Status, action)
	if !ok {
		return nil, wrap.Error(ctx, fmt.Errorf("%w: cannot %s a ride in status %q", types.ErrInvalidTransition, action, ride.Status))
	}

	t.RideID, t.From, t.To = ride.ID, ride.Status, to

	var (
		updated *models.Ride
		event   models.RideEvent
	)
	err := s.infra.trm.Do(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repos.ride.Transition(ctx, t)
		if err != nil {
			return err
		}

		if after != nil {
			if err := after(ctx, updated); err != nil {
				return err
			}
		}

		event = models.NewRideEvent(updated, ride.Status, t.ActorID)
		return s.repos.event.Append(ctx, event)
	})
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to %s ride: %w", action, err))
	}

	metrics.RideTransitionsTotal.WithLabelValues(ride.Status.String(), to.String()).Inc()
	s.notify(ctx, event)

	return updated, nil
}
