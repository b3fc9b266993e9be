package models

import (
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/google/uuid"
)

// RideEvent is one audit log record. Every successful transition appends exactly one.
type RideEvent struct {
	ID              uuid.UUID        `json:"id"`
	RideID          uuid.UUID        `json:"ride_id"`
	EventType       types.RideEvent  `json:"event_type"`
	OldStatus       types.RideStatus `json:"old_status,omitempty"`
	NewStatus       types.RideStatus `json:"new_status"`
	AssignedRiderID *uuid.UUID       `json:"assigned_rider_id,omitempty"`
	ActorID         uuid.UUID        `json:"actor_id"`
	Version         int              `json:"version"`
	OccurredAt      time.Time        `json:"occurred_at"`
}

// BroadcastEvent is the payload fanned out to subscribers.
type BroadcastEvent struct {
	RideID          uuid.UUID        `json:"ride_id"`
	NewStatus       types.RideStatus `json:"new_status"`
	AssignedRiderID *uuid.UUID       `json:"assigned_rider_id,omitempty"`
	EventType       types.RideEvent  `json:"event_type"`
	Version         int              `json:"version"`
	Timestamp       time.Time        `json:"timestamp"`
}

func (e RideEvent) Broadcast() BroadcastEvent {
	return BroadcastEvent{
		RideID:          e.RideID,
		NewStatus:       e.NewStatus,
		AssignedRiderID: e.AssignedRiderID,
		EventType:       e.EventType,
		Version:         e.Version,
		Timestamp:       e.OccurredAt,
	}
}

// Topics returns the broadcast topics the event belongs to.
// Rides entering or leaving Available also go to the new-bookings feed.
func (e RideEvent) Topics() []string {
	topics := []string{types.RideTopic(e.RideID.String())}
	if e.NewStatus == types.StatusAvailable || e.OldStatus == types.StatusAvailable {
		topics = append(topics, types.TopicNewBookings)
	}
	return topics
}

// NewRideEvent builds the event for a status change.
func NewRideEvent(ride *Ride, from types.RideStatus, actorID uuid.UUID) RideEvent {
	var rider *uuid.UUID
	if ride.AssignedRiderID != nil {
		id := *ride.AssignedRiderID
		rider = &id
	}
	return RideEvent{
		ID:              uuid.New(),
		RideID:          ride.ID,
		EventType:       types.EventFor(ride.Status),
		OldStatus:       from,
		NewStatus:       ride.Status,
		AssignedRiderID: rider,
		ActorID:         actorID,
		Version:         ride.Version,
		OccurredAt:      ride.UpdatedAt,
	}
}
