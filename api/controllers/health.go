package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-payments/api/responses"
	"github.com/angelmondragon/storefront-payments/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

const (
	envHeader         = "X-Storefront-Env"
	readinessDeadline = 2 * time.Second
)

// Pinger is any dependency that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency and fails with 503 on the first
// that does not answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessDeadline)
		defer cancel()

		checks := make(map[string]string, len(deps))
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" not ready").
					WithDetails(map[string]string{"dependency": name}))
				return
			}
			checks[name] = "ok"
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
