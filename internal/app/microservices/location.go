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
	"github.com/Temutjin2k/ride-match/internal/adapter/stream"
	"github.com/Temutjin2k/ride-match/internal/service/auth"
	"github.com/Temutjin2k/ride-match/internal/service/location"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
)

// LocationService consumes rider location samples from Kafka into the sample store
// and serves nearby queries over HTTP.
type LocationService struct {
	redis      *redis.Client
	consumer   *stream.Consumer
	httpServer *server.API

	cfg config.Config
	log logger.Logger
}

func NewLocation(ctx context.Context, cfg config.Config, log logger.Logger) (*LocationService, error) {
	ctx = wrap.WithAction(ctx, "location_service_init")
	s := &LocationService{cfg: cfg, log: log}

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
	store, redisClient, err := locationStore(ctx, cfg, log, checks)
	if err != nil {
		log.Error(ctx, "Failed to setup location store", err)
		return nil, err
	}
	s.redis = redisClient

	// здесь сэмплы пишутся прямо в хранилище, поток читает consumer
	locationService := location.New(store, nil, "", log)

	if len(cfg.Kafka.Brokers) > 0 {
		s.consumer = stream.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Group, locationService, log)
	} else {
		log.Warn(ctx, "kafka brokers are not configured, only direct samples are stored")
	}

	s.httpServer, err = server.New(cfg, server.Services{
		Location: locationService,
		Auth:     tokens,
		Checks:   checks,
	}, log)
	if err != nil {
		log.Error(ctx, "Failed to setup http server", err)
		return nil, err
	}

	ready = true
	return s, nil
}

func (s *LocationService) Start(ctx context.Context) error {
	errCh := make(chan error, 2)

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	consumerDone := make(chan struct{})
	if s.consumer != nil {
		go func() {
			defer close(consumerDone)
			if err := s.consumer.Run(consumeCtx); err != nil {
				errCh <- fmt.Errorf("location consumer: %w", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	s.httpServer.Run(ctx, errCh)
	defer func() {
		ctx := wrap.WithAction(context.WithoutCancel(ctx), "location_service_shutdown")
		if err := s.httpServer.Stop(ctx); err != nil {
			s.log.Warn(ctx, "Failed to gracefully close http server", "error", err.Error())
		}

		stopConsumer()
		select {
		case <-consumerDone:
		case <-time.After(5 * time.Second):
			s.log.Warn(ctx, "location consumer did not stop in time")
		}

		s.close(ctx)
		s.log.Info(ctx, "location service closed")
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "Location service has been started", "kafka", s.consumer != nil, "redis", s.redis != nil)

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shuting down application", "signal", sig.String())
		return nil
	}
}

func (s *LocationService) close(ctx context.Context) {
	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			s.log.Warn(ctx, "Failed to close kafka consumer", "error", err.Error())
		}
	}
	closeRedis(ctx, s.redis, s.log)
}
