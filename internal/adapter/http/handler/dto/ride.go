package dto

import (
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/pkg/validator"
	"github.com/google/uuid"
)

type LocationRequest struct {
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lng"`
	Address   string   `json:"address"`
}

func (l *LocationRequest) validate(v *validator.Validator, field string) {
	v.Check(l.Latitude != nil, field+".lat", "must be provided")
	v.Check(l.Longitude != nil, field+".lng", "must be provided")
	if l.Latitude != nil {
		v.Check(validator.Between(*l.Latitude, -90, 90), field+".lat", "must be between -90 and 90")
	}
	if l.Longitude != nil {
		v.Check(validator.Between(*l.Longitude, -180, 180), field+".lng", "must be between -180 and 180")
	}
	v.Check(len(l.Address) <= 255, field+".address", "must not be more than 255 characters long")
}

// ToModel returns nil for an omitted location.
func (l *LocationRequest) ToModel() *models.Location {
	if l == nil || l.Latitude == nil || l.Longitude == nil {
		return nil
	}
	return &models.Location{
		Latitude:  *l.Latitude,
		Longitude: *l.Longitude,
		Address:   l.Address,
	}
}

// CreateRideRequest - pickup and dropoff may be omitted, the service then answers "no fare calculated".
type CreateRideRequest struct {
	Pickup   *LocationRequest `json:"pickup"`
	Dropoff  *LocationRequest `json:"dropoff"`
	RideType string           `json:"ride_type"`
}

// для создания поездки
func (r *CreateRideRequest) Validate(v *validator.Validator) {
	if r.Pickup != nil {
		r.Pickup.validate(v, "pickup")
	}
	if r.Dropoff != nil {
		r.Dropoff.validate(v, "dropoff")
	}

	v.Check(r.RideType != "", "ride_type", "must be provided")
	if r.RideType != "" {
		v.Check(validator.PermittedValue(r.RideType, types.RideTypes...), "ride_type", "must be one of Motor Taxi, Pakyaw or Delivery")
	}
}

func (r *CreateRideRequest) ToModel() models.RideRequest {
	return models.RideRequest{
		Pickup:   r.Pickup.ToModel(),
		Dropoff:  r.Dropoff.ToModel(),
		RideType: types.RideType(r.RideType),
	}
}

type RideResponse struct {
	RideID          uuid.UUID         `json:"ride_id"`
	CustomerID      uuid.UUID         `json:"customer_id"`
	AssignedRiderID *uuid.UUID        `json:"assigned_rider_id"`
	Pickup          models.Location   `json:"pickup"`
	Dropoff         models.Location   `json:"dropoff"`
	RideType        types.RideType    `json:"ride_type"`
	Fare            float64           `json:"fare"`
	DistanceKm      float64           `json:"distance_km"`
	FareSource      models.FareSource `json:"fare_source"`
	Status          types.RideStatus  `json:"status"`
	Version         int               `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func NewRideResponse(r *models.Ride) RideResponse {
	return RideResponse{
		RideID:          r.ID,
		CustomerID:      r.CustomerID,
		AssignedRiderID: r.AssignedRiderID,
		Pickup:          r.Pickup,
		Dropoff:         r.Dropoff,
		RideType:        r.RideType,
		Fare:            r.Fare,
		DistanceKm:      r.DistanceKm,
		FareSource:      r.FareSource,
		Status:          r.Status,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func NewRideResponses(rides []*models.Ride) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, NewRideResponse(r))
	}
	return out
}

type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (r *ReviewRequest) Validate(v *validator.Validator) {
	v.Check(validator.Between(r.Rating, 1, 5), "rating", "must be between 1 and 5")
	v.Check(len([]rune(r.Comment)) <= 500, "comment", "must not be more than 500 characters long")
}
