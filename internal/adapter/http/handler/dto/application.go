package dto

import (
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/pkg/validator"
	"github.com/google/uuid"
)

const (
	ApplyMessageApplied = "applied"
	ApplyMessageExists  = "exist"
)

// ApplyRequest carries the rider's current position.
type ApplyRequest struct {
	LocationRequest
}

func (r *ApplyRequest) Validate(v *validator.Validator) {
	r.validate(v, "location")
}

type ApplicationResponse struct {
	ApplicationID uuid.UUID               `json:"application_id"`
	RideID        uuid.UUID               `json:"ride_id"`
	RiderID       uuid.UUID               `json:"rider_id"`
	Location      models.Location         `json:"location"`
	Status        types.ApplicationStatus `json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func NewApplicationResponse(a *models.Application) *ApplicationResponse {
	if a == nil {
		return nil
	}
	return &ApplicationResponse{
		ApplicationID: a.ID,
		RideID:        a.RideID,
		RiderID:       a.ApplierID,
		Location:      a.ApplierLocation,
		Status:        a.Status,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func NewApplicationResponses(apps []*models.Application) []*ApplicationResponse {
	out := make([]*ApplicationResponse, 0, len(apps))
	for _, a := range apps {
		out = append(out, NewApplicationResponse(a))
	}
	return out
}
