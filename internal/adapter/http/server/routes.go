package server

import (
	"net/http"

	_ "github.com/Temutjin2k/ride-match/docs" // registers the "ride" swagger instance
	"github.com/Temutjin2k/ride-match/internal/adapter/http/middleware"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// setupRoutes - setups http routes
func setupRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware, mode types.ServiceMode) {
	// System Health
	mux.HandleFunc("GET /health", routes.health.HealthCheck)

	setupMetricsRoute(mux)

	switch mode {
	case types.RideService:
		setupSwaggerRoutes(mux)
		setupRideRoutes(mux, routes, m)
		setupLocationRoutes(mux, routes, m)
	case types.LocationService:
		setupLocationRoutes(mux, routes, m)
	}
}

// setupRideRoutes setups routes for ride service
func setupRideRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	customer, rider := types.CustomerRole, types.RiderRole

	mux.Handle("POST /rides", m.RequireRoles(routes.ride.CreateRide, customer))      // Create a new ride
	mux.Handle("GET /rides/open", m.RequireRoles(routes.ride.ListOpenRides, rider))  // Open rides feed
	mux.Handle("GET /rides/{ride_id}", m.RequireRoles(routes.ride.GetRide))          // Ride status
	mux.Handle("GET /rides/{ride_id}/events", m.RequireRoles(routes.ride.RideEvents)) // Audit log, participants only

	// Applications and matching
	mux.Handle("POST /rides/{ride_id}/applications", m.RequireRoles(routes.ride.Apply, rider))
	mux.Handle("GET /rides/{ride_id}/applications", m.RequireRoles(routes.ride.ListApplications))
	mux.Handle("POST /rides/{ride_id}/applications/{application_id}/approve", m.RequireRoles(routes.ride.Approve, customer))
	mux.Handle("POST /rides/{ride_id}/applications/{application_id}/reject", m.RequireRoles(routes.ride.Reject, customer))
	mux.Handle("POST /rides/{ride_id}/accept", m.RequireRoles(routes.ride.Accept, rider))

	// Lifecycle
	mux.Handle("POST /rides/{ride_id}/start", m.RequireRoles(routes.ride.StartRide, customer, rider))
	mux.Handle("POST /rides/{ride_id}/complete", m.RequireRoles(routes.ride.CompleteRide, rider))
	mux.Handle("POST /rides/{ride_id}/cancel", m.RequireRoles(routes.ride.CancelRide, customer, rider))
	mux.Handle("POST /rides/{ride_id}/relist", m.RequireRoles(routes.ride.RelistRide, customer))
	mux.Handle("POST /rides/{ride_id}/review", m.RequireRoles(routes.ride.ReviewRide, customer))

	// Active ride and history, only for the user in the path
	mux.Handle("GET /customers/{customer_id}/active-ride", m.RequireRoles(routes.ride.CustomerActiveRide, customer))
	mux.Handle("GET /customers/{customer_id}/rides", m.RequireRoles(routes.ride.CustomerHistory, customer))
	mux.Handle("GET /riders/{rider_id}/active-ride", m.RequireRoles(routes.ride.RiderActiveRide, rider))
	mux.Handle("GET /riders/{rider_id}/rides", m.RequireRoles(routes.ride.RiderHistory, rider))

	// Fares are public
	mux.HandleFunc("GET /fares", routes.fares.FarePolicy)
	mux.HandleFunc("GET /fares/quote", routes.fares.FareQuote)

	// WebSocket, identity is checked before the upgrade
	mux.HandleFunc("GET /ws", routes.subscribe.Subscribe)
}

// setupLocationRoutes setups rider location routes, served by both modes
func setupLocationRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.Handle("POST /riders/location", m.RequireRoles(routes.location.RecordLocation, types.RiderRole))
	mux.Handle("GET /riders/locations", m.RequireRoles(routes.location.NearbyRiders))
}

// setupSwaggerRoutes configures Swagger UI endpoints
func setupSwaggerRoutes(mux *http.ServeMux) {
	swaggerURL := httpSwagger.InstanceName("ride")
	mux.HandleFunc("/swagger/", httpSwagger.Handler(swaggerURL))
}

// setupMetricsRoute configures the Prometheus metrics endpoint
func setupMetricsRoute(mux *http.ServeMux) {
	mux.Handle("GET /metrics", promhttp.Handler())
}
