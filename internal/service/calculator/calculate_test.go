package ridecalc_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	ridecalc "github.com/Temutjin2k/ride-match/internal/service/calculator"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFare(t *testing.T) {
	calc := ridecalc.New(ridecalc.DefaultPolicy())

	cases := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"zero", 0, 40},
		{"under threshold", 1.5, 40},
		{"at threshold", 2, 40},
		{"five km", 5, 70},
		{"fractional", 2.35, 43.5},
		{"long", 12.34, 143.4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, calc.Fare(tc.distance), 1e-9)
		})
	}
}

func TestFare_CustomPolicy(t *testing.T) {
	calc := ridecalc.New(ridecalc.Policy{BaseFare: 50, PerKmRate: 12.5, ThresholdKm: 3})
	assert.InDelta(t, 50.0, calc.Fare(3), 1e-9)
	assert.InDelta(t, 62.5, calc.Fare(4), 1e-9)
}

func TestMetersToKm(t *testing.T) {
	assert.Equal(t, 1.23, ridecalc.MetersToKm(1234))
	assert.Equal(t, 5.0, ridecalc.MetersToKm(4999))
}

func TestHaversine(t *testing.T) {
	// one degree of latitude is ~111.19 km
	d := ridecalc.Haversine(0, 0, 1, 0)
	assert.InDelta(t, 111.19, d, 0.01)
	assert.Zero(t, ridecalc.Haversine(14.5, 121, 14.5, 121))
}

func TestParseCoordinate(t *testing.T) {
	loc, err := ridecalc.ParseCoordinate(" 14.5995, 120.9842 ")
	require.NoError(t, err)
	assert.Equal(t, 14.5995, loc.Latitude)
	assert.Equal(t, 120.9842, loc.Longitude)

	for _, in := range []string{"", "14.5", "a,b", "91,0", "0,181", "1,2,3"} {
		_, err := ridecalc.ParseCoordinate(in)
		assert.ErrorIs(t, err, types.ErrInvalidCoordinate, in)
		assert.ErrorIs(t, err, types.ErrValidation, in)
	}
}

type routerFunc func(ctx context.Context, from, to models.Location) (float64, error)

func (f routerFunc) DrivingDistance(ctx context.Context, from, to models.Location) (float64, error) {
	return f(ctx, from, to)
}

var _ ridecalc.DistanceProvider = routerFunc(nil)

func newEstimator(router ridecalc.DistanceProvider, fallback bool) *ridecalc.Estimator {
	l := logger.New(io.Discard, "test", logger.LevelError)
	return ridecalc.NewEstimator(ridecalc.New(ridecalc.DefaultPolicy()), router, fallback, l)
}

func TestEstimator_Quote(t *testing.T) {
	pickup := &models.Location{Latitude: 14.5995, Longitude: 120.9842}
	dropoff := &models.Location{Latitude: 14.6091, Longitude: 121.0223}

	t.Run("routing distance", func(t *testing.T) {
		e := newEstimator(routerFunc(func(context.Context, models.Location, models.Location) (float64, error) {
			return 4996, nil
		}), true)

		q, err := e.Quote(context.Background(), pickup, dropoff)
		require.NoError(t, err)
		assert.Equal(t, 5.0, q.DistanceKm)
		assert.Equal(t, 70.0, q.Fare)
		assert.Equal(t, models.FareSourceRouting, q.Source)
	})

	t.Run("missing dropoff", func(t *testing.T) {
		e := newEstimator(nil, true)
		_, err := e.Quote(context.Background(), pickup, nil)
		assert.ErrorIs(t, err, types.ErrNoFareCalculated)
	})

	t.Run("fallback to haversine", func(t *testing.T) {
		e := newEstimator(routerFunc(func(context.Context, models.Location, models.Location) (float64, error) {
			return 0, errors.New("connection refused")
		}), true)

		q, err := e.Quote(context.Background(), pickup, dropoff)
		require.NoError(t, err)
		assert.Equal(t, models.FareSourceHaversine, q.Source)
		assert.Greater(t, q.DistanceKm, 0.0)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		e := newEstimator(routerFunc(func(context.Context, models.Location, models.Location) (float64, error) {
			return 0, errors.New("connection refused")
		}), false)

		_, err := e.Quote(context.Background(), pickup, dropoff)
		assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
	})

	t.Run("invalid coordinate", func(t *testing.T) {
		e := newEstimator(nil, true)
		_, err := e.Quote(context.Background(), &models.Location{Latitude: 100}, dropoff)
		assert.ErrorIs(t, err, types.ErrInvalidCoordinate)
	})
}
