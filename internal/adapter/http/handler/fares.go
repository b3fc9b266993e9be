package handler

import (
	"context"
	"net/http"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	ridecalc "github.com/Temutjin2k/ride-match/internal/service/calculator"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/Temutjin2k/ride-match/pkg/validator"
)

type FareService interface {
	Quote(ctx context.Context, pickup, dropoff *models.Location) (models.FareQuote, error)
	FarePolicy() ridecalc.Policy
}

type Fares struct {
	service FareService
	l       logger.Logger
}

func NewFares(service FareService, l logger.Logger) *Fares {
	return &Fares{service: service, l: l}
}

// FarePolicy godoc
// @Summary      Fare policy
// @Description  Base fare for the first 2 km and the rate for every km above.
// @Tags         Fares
// @Produce      json
// @Success      200  {object}  ridecalc.Policy
// @Router       /fares [get]
func (h *Fares) FarePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "fare_policy")

	if err := writeJSON(w, http.StatusOK, envelope{"fare": h.service.FarePolicy()}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// FareQuote godoc
// @Summary      Fare quote
// @Tags         Fares
// @Produce      json
// @Param        pickup   query     string  true  "lat,lng"
// @Param        dropoff  query     string  true  "lat,lng"
// @Success      200      {object}  models.FareQuote
// @Failure      422      {object}  map[string]string
// @Failure      503      {object}  map[string]string
// @Router       /fares/quote [get]
func (h *Fares) FareQuote(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "fare_quote")

	v := validator.New()
	pickup := h.coordinate(r, "pickup", v)
	dropoff := h.coordinate(r, "dropoff", v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	quote, err := h.service.Quote(ctx, pickup, dropoff)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to quote fare", err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"quote": quote}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// coordinate returns nil for a missing parameter so the service reports "no fare calculated".
func (h *Fares) coordinate(r *http.Request, key string, v *validator.Validator) *models.Location {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil
	}
	loc, err := ridecalc.ParseCoordinate(s)
	if err != nil {
		v.AddError(key, "must be a valid \"lat,lng\" pair")
		return nil
	}
	return &loc
}
