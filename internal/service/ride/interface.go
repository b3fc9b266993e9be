package ride

import (
	"context"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	ridecalc "github.com/Temutjin2k/ride-match/internal/service/calculator"
	"github.com/google/uuid"
)

/*=================Ride Repository======================*/

type RideRepo interface {
	// Create stores a new ride. Fails with ErrActiveRideExists if the customer has a non-terminal ride.
	Create(ctx context.Context, ride *models.Ride) error
	Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	// Transition applies t only if the ride is still in t.From, otherwise ErrStaleState.
	// An assignment also fails with ErrApplicationNotPending when models.Transition.CheckWinner refuses the rider.
	// Version is incremented by one on success.
	Transition(ctx context.Context, t models.Transition) (*models.Ride, error)
	ListOpen(ctx context.Context) ([]*models.Ride, error)
	GetActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Ride, error)
	GetActiveByRider(ctx context.Context, riderID uuid.UUID) (*models.Ride, error)
	History(ctx context.Context, role types.UserRole, userID uuid.UUID, filter models.HistoryFilter) ([]*models.Ride, int, error)
}

/*=================Application Repository======================*/

type ApplicationRepo interface {
	// Apply creates a Pending application unless the rider already has a live one.
	// Must be atomic with respect to transitions of the same ride.
	Apply(ctx context.Context, app *models.Application) (models.ApplicationResult, error)
	Get(ctx context.Context, rideID, applicationID uuid.UUID) (*models.Application, error)
	List(ctx context.Context, rideID uuid.UUID) ([]*models.Application, error)
	HasApplied(ctx context.Context, rideID, riderID uuid.UUID) (bool, error)
	// ResolveMatch marks the winner's Pending application Accepted and supersedes the other Pending ones.
	ResolveMatch(ctx context.Context, rideID, riderID uuid.UUID) (accepted *models.Application, superseded int, err error)
	Reject(ctx context.Context, rideID, applicationID uuid.UUID) (*models.Application, error)
}

/*=================Ride Event Repository======================*/

type RideEventRepo interface {
	Append(ctx context.Context, event models.RideEvent) error
	List(ctx context.Context, rideID uuid.UUID) ([]models.RideEvent, error)
}

/*=================Review Repository======================*/

type ReviewRepo interface {
	Create(ctx context.Context, review *models.Review) error
	Get(ctx context.Context, rideID uuid.UUID) (*models.Review, error)
}

/*========================Publisher===============================*/

// Publisher delivers one event on all its topics. A subscriber of several of them gets it once.
type Publisher interface {
	PublishMany(ctx context.Context, topics []string, event models.BroadcastEvent) error
}

/*=====================Fare Estimator============================*/

type FareEstimator interface {
	Quote(ctx context.Context, pickup, dropoff *models.Location) (models.FareQuote, error)
	Policy() ridecalc.Policy
}

/*===================== Address Geo Coder ========================*/

type GeoCoder interface {
	GetAddress(ctx context.Context, loc models.Location) (string, error)
}
