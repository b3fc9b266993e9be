package types

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of them.
var (
	ErrValidation          = errors.New("validation error")
	ErrStateConflict       = errors.New("state conflict")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrNotFound            = errors.New("requested item not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

var (
	ErrStaleState            = fmt.Errorf("%w: ride status changed concurrently", ErrStateConflict)
	ErrRideNoLongerAvailable = fmt.Errorf("%w: ride is no longer available", ErrStateConflict)
	ErrRideNotOpen           = fmt.Errorf("%w: ride is not open for applications", ErrStateConflict)
	ErrActiveRideExists      = fmt.Errorf("%w: customer already has an active ride", ErrStateConflict)
	ErrRiderBusy             = fmt.Errorf("%w: rider already has an active ride", ErrStateConflict)
	ErrReviewExists          = fmt.Errorf("%w: ride already reviewed", ErrStateConflict)
	ErrApplicationNotPending = fmt.Errorf("%w: application is not pending", ErrStateConflict)

	ErrRideNotFound        = fmt.Errorf("%w: ride not found", ErrNotFound)
	ErrApplicationNotFound = fmt.Errorf("%w: application not found", ErrNotFound)
	ErrLocationNotFound    = fmt.Errorf("%w: rider location not found", ErrNotFound)
	ErrReviewNotFound      = fmt.Errorf("%w: review not found", ErrNotFound)

	ErrNotRideParticipant = fmt.Errorf("%w: user is not a participant of the ride", ErrUnauthorized)
	ErrForbiddenRole      = fmt.Errorf("%w: role is not allowed to perform this action", ErrUnauthorized)
	ErrOwnRide            = fmt.Errorf("%w: cannot match own ride", ErrUnauthorized)

	ErrNoFareCalculated  = fmt.Errorf("%w: no fare calculated, pickup and dropoff are required", ErrValidation)
	ErrInvalidCoordinate = fmt.Errorf("%w: invalid coordinate", ErrValidation)
	ErrRideNotCompleted  = fmt.Errorf("%w: only completed rides can be reviewed", ErrValidation)
	ErrRideNotCancelled  = fmt.Errorf("%w: only cancelled rides can be relisted", ErrValidation)
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoIdentity   = errors.New("missing identity")
)
