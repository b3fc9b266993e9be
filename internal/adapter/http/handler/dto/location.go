package dto

import (
	"time"

	"github.com/Temutjin2k/ride-match/pkg/validator"
)

type RecordLocationRequest struct {
	Latitude   *float64  `json:"lat"`
	Longitude  *float64  `json:"lng"`
	CapturedAt time.Time `json:"captured_at"`
}

func (r *RecordLocationRequest) Validate(v *validator.Validator) {
	v.Check(r.Latitude != nil, "lat", "must be provided")
	v.Check(r.Longitude != nil, "lng", "must be provided")
	if r.Latitude != nil {
		v.Check(validator.Between(*r.Latitude, -90, 90), "lat", "must be between -90 and 90")
	}
	if r.Longitude != nil {
		v.Check(validator.Between(*r.Longitude, -180, 180), "lng", "must be between -180 and 180")
	}
}
