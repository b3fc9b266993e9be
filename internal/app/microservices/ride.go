package microservices

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Temutjin2k/ride-match/config"
	"github.com/Temutjin2k/ride-match/internal/adapter/http/handler"
	"github.com/Temutjin2k/ride-match/internal/adapter/http/server"
	wshandler "github.com/Temutjin2k/ride-match/internal/adapter/http/ws"
	"github.com/Temutjin2k/ride-match/internal/adapter/locationIQ"
	"github.com/Temutjin2k/ride-match/internal/adapter/memory"
	repo "github.com/Temutjin2k/ride-match/internal/adapter/postgres"
	broker "github.com/Temutjin2k/ride-match/internal/adapter/rabbit"
	"github.com/Temutjin2k/ride-match/internal/adapter/stream"
	"github.com/Temutjin2k/ride-match/internal/service/auth"
	"github.com/Temutjin2k/ride-match/internal/service/broadcast"
	ridecalc "github.com/Temutjin2k/ride-match/internal/service/calculator"
	"github.com/Temutjin2k/ride-match/internal/service/location"
	"github.com/Temutjin2k/ride-match/internal/service/ride"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/Temutjin2k/ride-match/pkg/postgres"
	"github.com/Temutjin2k/ride-match/pkg/rabbit"
	"github.com/Temutjin2k/ride-match/pkg/trm"
	ws "github.com/Temutjin2k/ride-match/pkg/wsHub"
)

type RideService struct {
	postgresDB *postgres.PostgreDB
	rabbit     *rabbit.RabbitMQ
	broker     *broker.EventBroker
	redis      *redis.Client
	producer   *stream.Producer

	hub        *broadcast.Hub
	conns      *ws.ConnectionHub
	httpServer *server.API

	cfg config.Config
	log logger.Logger
}

func NewRide(ctx context.Context, cfg config.Config, log logger.Logger) (*RideService, error) {
	ctx = wrap.WithAction(ctx, "ride_service_init")
	s := &RideService{cfg: cfg, log: log}

	// если что-то не поднялось, закрываем то, что уже открыли
	ready := false
	defer func() {
		if !ready {
			s.close(ctx)
		}
	}()

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, log)
	if err != nil {
		log.Error(ctx, "Failed to setup token service", err)
		return nil, err
	}

	checks := make(map[string]handler.Pinger)

	repos, tx, err := s.storage(ctx, checks)
	if err != nil {
		log.Error(ctx, "Failed to setup storage", err)
		return nil, err
	}

	estimator, opts := s.fareEstimator(ctx)
	opts = append(opts, ride.WithPublishTimeout(cfg.Broadcast.PublishTimeout))

	s.hub = broadcast.NewHub(cfg.Broadcast.Buffer, log)
	var publisher ride.Publisher = s.hub
	if cfg.RabbitMQ.Enabled {
		s.rabbit, err = rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), log)
		if err != nil {
			log.Error(ctx, "Failed to connect to rabbitmq", err)
			return nil, err
		}
		s.broker, err = broker.NewEventBroker(ctx, s.rabbit, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Error(ctx, "Failed to setup broadcast exchange", err)
			return nil, err
		}
		// события идут через брокер и возвращаются в локальный hub через Relay
		publisher = s.broker
		checks["rabbitmq"] = s.rabbit
	}

	rideService := ride.NewRideService(repos, tx, publisher, estimator, log, opts...)

	store, redisClient, err := locationStore(ctx, cfg, log, checks)
	if err != nil {
		log.Error(ctx, "Failed to setup location store", err)
		return nil, err
	}
	s.redis = redisClient

	var locationService *location.Service
	if len(cfg.Kafka.Brokers) > 0 {
		s.producer = stream.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.WriteTimeout)
		locationService = location.New(store, s.producer, "kafka", log)
	} else {
		locationService = location.New(store, nil, "", log)
	}

	s.conns = ws.NewConnHub(log)
	subscribe := wshandler.NewSubscribeHandler(rideService, s.hub, s.conns, cfg.Broadcast.AllowedOrigins, string(cfg.Mode), log)

	s.httpServer, err = server.New(cfg, server.Services{
		Ride:      rideService,
		Fares:     rideService,
		Location:  locationService,
		Auth:      tokens,
		Subscribe: subscribe,
		Checks:    checks,
	}, log)
	if err != nil {
		log.Error(ctx, "Failed to setup http server", err)
		return nil, err
	}

	ready = true
	return s, nil
}

// storage returns the ride repositories with their transaction manager.
func (s *RideService) storage(ctx context.Context, checks map[string]handler.Pinger) (ride.Repos, trm.TxManager, error) {
	switch s.cfg.Storage.Driver {
	case config.StorageMemory:
		s.log.Warn(ctx, "using in-memory ride storage, data is lost on restart")
		store := memory.NewStore()
		return ride.Repos{
			Ride:        memory.NewRideRepo(store),
			Application: memory.NewApplicationRepo(store),
			Event:       memory.NewRideEventRepo(store),
			Review:      memory.NewReviewRepo(store),
		}, trm.Nop{}, nil
	case config.StoragePostgres:
		db, err := postgres.New(ctx, s.cfg.Database)
		if err != nil {
			return ride.Repos{}, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		s.postgresDB = db
		checks["postgres"] = db

		return ride.Repos{
			Ride:        repo.NewRideRepo(db.Pool),
			Application: repo.NewApplicationRepo(db.Pool),
			Event:       repo.NewRideEventRepo(db.Pool),
			Review:      repo.NewReviewRepo(db.Pool),
		}, trm.New(db.Pool), nil
	default:
		return ride.Repos{}, nil, fmt.Errorf("unknown storage driver: %q", s.cfg.Storage.Driver)
	}
}

// fareEstimator uses LocationIQ routing when an API key is configured, haversine otherwise.
func (s *RideService) fareEstimator(ctx context.Context) (*ridecalc.Estimator, []ride.Option) {
	calc := ridecalc.New(ridecalc.Policy{
		BaseFare:    s.cfg.Fare.BaseFare,
		PerKmRate:   s.cfg.Fare.PerKmRate,
		ThresholdKm: s.cfg.Fare.ThresholdKm,
	})

	if s.cfg.Routing.APIKey == "" {
		s.log.Info(ctx, "routing provider is not configured, fares use haversine distance")
		return ridecalc.NewEstimator(calc, nil, true, s.log), nil
	}

	client := locationIQ.New(s.cfg.Routing.BaseURL, s.cfg.Routing.APIKey, s.cfg.Routing.Timeout)
	return ridecalc.NewEstimator(calc, client, s.cfg.Routing.Fallback, s.log), []ride.Option{ride.WithGeoCoder(client)}
}

func (s *RideService) Start(ctx context.Context) error {
	errCh := make(chan error, 2)

	relayCtx, stopRelay := context.WithCancel(ctx)
	relayDone := make(chan struct{})
	if s.broker != nil {
		go func() {
			defer close(relayDone)
			if err := s.broker.Relay(relayCtx, s.hub); err != nil {
				errCh <- fmt.Errorf("broadcast relay: %w", err)
			}
		}()
	} else {
		close(relayDone)
	}

	s.httpServer.Run(ctx, errCh)
	defer func() {
		s.shutdown(ctx, stopRelay, relayDone)
		s.log.Info(ctx, "ride service closed")
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "Ride service has been started", "storage", s.cfg.Storage.Driver, "rabbitmq", s.broker != nil)

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shuting down application", "signal", sig.String())
		return nil
	}
}

// shutdown: http, websocket connections, consumers, then the clients.
func (s *RideService) shutdown(ctx context.Context, stopRelay context.CancelFunc, relayDone <-chan struct{}) {
	ctx = wrap.WithAction(context.WithoutCancel(ctx), "ride_service_shutdown")

	if s.httpServer != nil {
		if err := s.httpServer.Stop(ctx); err != nil {
			s.log.Warn(ctx, "Failed to gracefully close http server", "error", err.Error())
		}
	}

	if s.conns != nil {
		s.conns.Close()
	}

	stopRelay()
	select {
	case <-relayDone:
	case <-time.After(5 * time.Second):
		s.log.Warn(ctx, "broadcast relay did not stop in time")
	}

	s.close(ctx)
}

func (s *RideService) close(ctx context.Context) {
	if s.hub != nil {
		s.hub.Close()
	}

	if s.rabbit != nil {
		if err := s.rabbit.Close(ctx); err != nil {
			s.log.Warn(ctx, "Failed to close rabbitmq", "error", err.Error())
		}
	}

	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			s.log.Warn(ctx, "Failed to close kafka producer", "error", err.Error())
		}
	}

	closeRedis(ctx, s.redis, s.log)

	if s.postgresDB != nil && s.postgresDB.Pool != nil {
		s.postgresDB.Close()
	}
}
