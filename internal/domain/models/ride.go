package models

import (
	"fmt"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/google/uuid"
)

type Ride struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	AssignedRiderID *uuid.UUID
	Pickup          Location
	Dropoff         Location
	RideType        types.RideType

	// Расчетные поля
	Fare       float64
	DistanceKm float64
	FareSource FareSource

	Status    types.RideStatus
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsCustomer reports whether userID created the ride.
func (r *Ride) IsCustomer(userID uuid.UUID) bool {
	return r.CustomerID == userID
}

// IsAssigned reports whether userID is the rider currently assigned to the ride.
func (r *Ride) IsAssigned(userID uuid.UUID) bool {
	return r.AssignedRiderID != nil && *r.AssignedRiderID == userID
}

func (r *Ride) IsParticipant(userID uuid.UUID) bool {
	return r.IsCustomer(userID) || r.IsAssigned(userID)
}

// Clone returns a deep copy so callers can never mutate stored state.
func (r *Ride) Clone() *Ride {
	if r == nil {
		return nil
	}
	c := *r
	if r.AssignedRiderID != nil {
		id := *r.AssignedRiderID
		c.AssignedRiderID = &id
	}
	return &c
}

// Transition describes a guarded status change: it applies only when the ride is still in From.
type Transition struct {
	RideID          uuid.UUID
	From            types.RideStatus
	To              types.RideStatus
	AssignedRiderID *uuid.UUID
	ActorID         uuid.UUID

	// ApplicationID is set when the customer approves an application.
	// The assignment then requires that application to still be Pending.
	ApplicationID *uuid.UUID
}

// Assigns reports whether the transition books a rider.
func (t Transition) Assigns() bool {
	return t.To == types.StatusBooked && t.AssignedRiderID != nil
}

// CheckWinner guards an assignment against the winner's live application, nil when the rider never applied.
// A rider whose application was rejected is never assigned.
func (t Transition) CheckWinner(app *Application) error {
	if app != nil && app.Status == types.ApplicationRejected {
		return fmt.Errorf("%w: application was rejected", types.ErrApplicationNotPending)
	}
	if t.ApplicationID == nil {
		return nil
	}
	if app == nil || app.ID != *t.ApplicationID || app.Status != types.ApplicationPending {
		return types.ErrApplicationNotPending
	}
	return nil
}

// Review is the customer's feedback on a completed ride.
type Review struct {
	RideID     uuid.UUID `json:"ride_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	RiderID    uuid.UUID `json:"rider_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RideRequest is the customer's input to create a ride.
type RideRequest struct {
	Pickup   *Location
	Dropoff  *Location
	RideType types.RideType
}
