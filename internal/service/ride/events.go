package ride

import (
	"context"
	"fmt"
	"strings"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/google/uuid"
)

// notify publishes committed events. Failures are logged and never roll back state.
func (s *RideService) notify(ctx context.Context, events ...models.RideEvent) {
	if s.infra.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.infra.publishTimeout)
	defer cancel()

	for _, e := range events {
		topics := e.Topics()
		if err := s.infra.publisher.PublishMany(ctx, topics, e.Broadcast()); err != nil {
			s.l.Warn(wrap.ErrorCtx(ctx, err), "failed to publish ride event",
				"topics", topics, "event_type", e.EventType, "version", e.Version, "error", err.Error())
		}
	}
}

// Events returns the audit log of a ride. Participants only.
func (s *RideService) Events(ctx context.Context, id models.Identity, rideID uuid.UUID) ([]models.RideEvent, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "ride_events"), rideID.String())

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !ride.IsParticipant(id.UserID) {
		return nil, wrap.Error(ctx, types.ErrNotRideParticipant)
	}

	events, err := s.repos.event.List(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to list ride events: %w", err))
	}
	return events, nil
}

// AuthorizeSubscription checks that the caller may listen on topic.
// new-bookings is open to riders, ride.<id> to the ride's customer, its assigned rider and its applicants.
func (s *RideService) AuthorizeSubscription(ctx context.Context, id models.Identity, topic string) error {
	ctx = wrap.WithAction(ctx, "authorize_subscription")

	if topic == types.TopicNewBookings {
		if !id.IsRider() {
			return wrap.Error(ctx, types.ErrForbiddenRole)
		}
		return nil
	}

	raw, ok := strings.CutPrefix(topic, types.TopicRidePrefix)
	if !ok {
		return wrap.Error(ctx, fmt.Errorf("%w: unknown topic %q", types.ErrValidation, topic))
	}
	rideID, err := uuid.Parse(raw)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%w: invalid ride id in topic %q", types.ErrValidation, topic))
	}

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return wrap.Error(ctx, err)
	}
	if ride.IsParticipant(id.UserID) {
		return nil
	}

	applied, err := s.repos.app.HasApplied(ctx, rideID, id.UserID)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("failed to check application: %w", err))
	}
	if !applied {
		return wrap.Error(ctx, types.ErrNotRideParticipant)
	}
	return nil
}
