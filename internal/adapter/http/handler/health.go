package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
)

// Pinger is a dependency whose reachability is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	serviceName string
	checks      map[string]Pinger
	log         logger.Logger
}

func NewHealth(serviceName string, checks map[string]Pinger, log logger.Logger) *Health {
	return &Health{
		serviceName: serviceName,
		checks:      checks,
		log:         log,
	}
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Returns the health status of the service and its dependencies
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      503  {object}  map[string]any
// @Router       /health [get]
func (a *Health) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "health_check")

	status, code := "available", http.StatusOK
	deps := make(map[string]string, len(a.checks))
	for name, p := range a.checks {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			a.log.Warn(ctx, "health check failed", "dependency", name, "error", err.Error())
			deps[name] = "unavailable"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	response := envelope{
		"status": status,
		"system_info": map[string]string{
			"service-name": a.serviceName,
		},
		"dependencies": deps,
	}

	if err := writeJSON(w, code, response, nil); err != nil {
		a.log.Error(ctx, "healthcheck", err)
		return
	}
}
