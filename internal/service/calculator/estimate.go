package ridecalc

import (
	"context"
	"fmt"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/Temutjin2k/ride-match/pkg/metrics"
)

// DistanceProvider returns the driving distance in meters between two points.
type DistanceProvider interface {
	DrivingDistance(ctx context.Context, from, to models.Location) (float64, error)
}

// Estimator quotes rides using the routing provider, with haversine as a degraded fallback.
type Estimator struct {
	calc     *Calculator
	router   DistanceProvider
	fallback bool
	l        logger.Logger
}

// NewEstimator creates estimator. A nil router always quotes by haversine.
func NewEstimator(calc *Calculator, router DistanceProvider, fallback bool, l logger.Logger) *Estimator {
	return &Estimator{
		calc:     calc,
		router:   router,
		fallback: fallback,
		l:        l,
	}
}

func (e *Estimator) Policy() Policy {
	return e.calc.Policy()
}

// Quote computes distance and fare. A missing endpoint is ErrNoFareCalculated, never a zero fare.
func (e *Estimator) Quote(ctx context.Context, pickup, dropoff *models.Location) (models.FareQuote, error) {
	ctx = wrap.WithAction(ctx, "fare_quote")

	if pickup == nil || dropoff == nil {
		return models.FareQuote{}, wrap.Error(ctx, types.ErrNoFareCalculated)
	}
	if err := ValidateCoordinate(pickup.Latitude, pickup.Longitude); err != nil {
		return models.FareQuote{}, wrap.Error(ctx, fmt.Errorf("pickup: %w", err))
	}
	if err := ValidateCoordinate(dropoff.Latitude, dropoff.Longitude); err != nil {
		return models.FareQuote{}, wrap.Error(ctx, fmt.Errorf("dropoff: %w", err))
	}

	if e.router == nil {
		return e.haversineQuote(*pickup, *dropoff), nil
	}

	meters, err := e.router.DrivingDistance(ctx, *pickup, *dropoff)
	if err != nil {
		if !e.fallback {
			metrics.FareQuotesTotal.WithLabelValues("failed").Inc()
			return models.FareQuote{}, wrap.Error(ctx, fmt.Errorf("%w: routing provider: %v", types.ErrUpstreamUnavailable, err))
		}
		e.l.Warn(wrap.ErrorCtx(ctx, err), "routing provider failed, falling back to haversine distance", "error", err.Error())
		return e.haversineQuote(*pickup, *dropoff), nil
	}

	distance := MetersToKm(meters)
	metrics.FareQuotesTotal.WithLabelValues(string(models.FareSourceRouting)).Inc()
	return models.FareQuote{
		DistanceKm: distance,
		Fare:       e.calc.Fare(distance),
		Source:     models.FareSourceRouting,
	}, nil
}

func (e *Estimator) haversineQuote(pickup, dropoff models.Location) models.FareQuote {
	distance := Round2(e.calc.Distance(pickup, dropoff))
	metrics.FareQuotesTotal.WithLabelValues(string(models.FareSourceHaversine)).Inc()
	return models.FareQuote{
		DistanceKm: distance,
		Fare:       e.calc.Fare(distance),
		Source:     models.FareSourceHaversine,
	}
}
