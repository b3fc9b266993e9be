package locationIQ_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Temutjin2k/ride-match/internal/adapter/locationIQ"
	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	from = models.Location{Latitude: 14.5995, Longitude: 120.9842}
	to   = models.Location{Latitude: 14.6091, Longitude: 121.0223}
)

func TestDrivingDistance_SumsLegs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/directions/driving/120.984200,14.599500;121.022300,14.609100", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":9999,"legs":[{"distance":1200.5},{"distance":800}]}]}`))
	}))
	defer srv.Close()

	c := locationIQ.New(srv.URL, "secret", time.Second)
	meters, err := c.DrivingDistance(context.Background(), from, to)
	require.NoError(t, err)
	assert.InDelta(t, 2000.5, meters, 1e-9)
}

func TestDrivingDistance_UpstreamErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"no route": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, err := locationIQ.New(srv.URL, "", time.Second).DrivingDistance(context.Background(), from, to)
			assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
		})
	}
}

func TestGetAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/reverse", r.URL.Path)
		_, _ = w.Write([]byte(`{"display_name":"Rizal Park, Manila"}`))
	}))
	defer srv.Close()

	addr, err := locationIQ.New(srv.URL, "k", time.Second).GetAddress(context.Background(), from)
	require.NoError(t, err)
	assert.Equal(t, "Rizal Park, Manila", addr)
}
