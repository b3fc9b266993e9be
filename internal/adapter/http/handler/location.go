package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Temutjin2k/ride-match/internal/adapter/http/handler/dto"
	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/Temutjin2k/ride-match/pkg/validator"
)

type LocationService interface {
	Record(ctx context.Context, id models.Identity, lat, lng float64, capturedAt time.Time) (models.RiderLocationSample, error)
	Nearby(ctx context.Context, center models.Location, radiusKm float64, limit int) ([]models.NearbyRider, error)
}

type Location struct {
	service LocationService
	l       logger.Logger
}

func NewLocation(service LocationService, l logger.Logger) *Location {
	return &Location{service: service, l: l}
}

// RecordLocation godoc
// @Summary      Record rider location
// @Tags         Riders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body  dto.RecordLocationRequest  true  "Sample"
// @Success      202  {object}  models.RiderLocationSample
// @Router       /riders/location [post]
func (h *Location) RecordLocation(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "record_location")

	id, err := identity(r)
	if err != nil {
		errorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req dto.RecordLocationRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	sample, err := h.service.Record(ctx, id, *req.Latitude, *req.Longitude, req.CapturedAt)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to record location", err)
		return
	}

	if err := writeJSON(w, http.StatusAccepted, envelope{"location": sample}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// NearbyRiders godoc
// @Summary      Nearby rider samples
// @Tags         Riders
// @Produce      json
// @Security     BearerAuth
// @Param        lat        query  number  true   "Latitude"
// @Param        lng        query  number  true   "Longitude"
// @Param        radius_km  query  number  false  "Radius in km"
// @Param        limit      query  int     false  "Max results"
// @Success      200  {array}  models.NearbyRider
// @Router       /riders/locations [get]
func (h *Location) NearbyRiders(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "nearby_riders")

	v := validator.New()
	v.Check(r.URL.Query().Has("lat"), "lat", "must be provided")
	v.Check(r.URL.Query().Has("lng"), "lng", "must be provided")
	center := models.Location{
		Latitude:  queryFloat(r, "lat", 0, v),
		Longitude: queryFloat(r, "lng", 0, v),
	}
	radius := queryFloat(r, "radius_km", 0, v)
	limit := queryInt(r, "limit", 0, v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	riders, err := h.service.Nearby(ctx, center, radius, limit)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to search nearby riders", err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"riders": riders}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}
