package models

import (
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/google/uuid"
)

type Application struct {
	ID              uuid.UUID
	RideID          uuid.UUID
	ApplierID       uuid.UUID
	ApplierLocation Location
	Status          types.ApplicationStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ApplicationResult tells whether apply created a new application or found an existing one.
type ApplicationResult struct {
	Created     bool
	Application *Application
}

// MatchResult is returned when a rider has been assigned to a ride.
type MatchResult struct {
	Ride       *Ride
	Accepted   *Application
	Superseded int
}
