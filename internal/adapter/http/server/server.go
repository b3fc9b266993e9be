package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Temutjin2k/ride-match/config"
	"github.com/Temutjin2k/ride-match/internal/adapter/http/handler"
	"github.com/Temutjin2k/ride-match/internal/adapter/http/middleware"
	wshandler "github.com/Temutjin2k/ride-match/internal/adapter/http/ws"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
)

const serverIPAddress = "%s:%s"

type API struct {
	mode   types.ServiceMode
	mux    *http.ServeMux
	server *http.Server
	routes *handlers // routes/handlers
	m      *middleware.Middleware

	addr string
	cfg  config.Config
	log  logger.Logger
}

// Services are the use cases the API exposes. Ride, Fares and Subscribe are
// required in ride-service mode, Location in both modes.
type Services struct {
	Ride      handler.RideService
	Fares     handler.FareService
	Location  handler.LocationService
	Auth      middleware.AuthService
	Subscribe *wshandler.SubscribeHandler
	Checks    map[string]handler.Pinger
}

type handlers struct {
	ride      *handler.Ride
	fares     *handler.Fares
	location  *handler.Location
	health    *handler.Health
	subscribe *wshandler.SubscribeHandler
}

func New(cfg config.Config, services Services, logger logger.Logger) (*API, error) {
	var addr string
	handlers := &handlers{
		health: handler.NewHealth(string(cfg.Mode), services.Checks, logger),
	}

	if services.Auth == nil {
		return nil, errors.New("auth service is required")
	}
	if services.Location == nil {
		return nil, errors.New("location service is required")
	}
	handlers.location = handler.NewLocation(services.Location, logger)

	switch cfg.Mode {
	case types.RideService:
		if services.Ride == nil || services.Fares == nil || services.Subscribe == nil {
			return nil, errors.New("ride, fares and subscribe services are required")
		}
		addr = fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Services.RideService)
		handlers.ride = handler.NewRide(services.Ride, logger)
		handlers.fares = handler.NewFares(services.Fares, logger)
		handlers.subscribe = services.Subscribe
	case types.LocationService:
		addr = fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Services.LocationService)
	default:
		return nil, fmt.Errorf("invalid mode: %s", cfg.Mode)
	}

	api := &API{
		mode: cfg.Mode,

		mux:    http.NewServeMux(),
		routes: handlers,
		m:      middleware.NewMiddleware(services.Auth, logger),
		addr:   addr,
		cfg:    cfg,
		log:    logger,
	}

	api.server = &http.Server{
		Addr:              api.addr,
		Handler:           api.withMiddleware(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	setupRoutes(api.mux, api.routes, api.m, api.mode)

	return api, nil
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr, "mode", a.mode)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	return a.server.Handler
}

// withMiddleware applies middlewares to the mux.
// Metrics has to sit right on the mux, it reads the matched pattern.
func (a *API) withMiddleware() http.Handler {
	return middleware.Chain(a.mux,
		a.m.Recover,
		a.m.RequestID,
		a.m.Logging,
		a.m.Auth,
		a.m.Metrics(string(a.mode)),
	)
}
