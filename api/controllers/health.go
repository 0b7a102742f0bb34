package controllers

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/multierr"

	"github.com/example/storefront/api/responses"
	"github.com/example/storefront/pkg/config"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/logger"
)

const envHeader = "X-Storefront-Env"

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks downstream dependencies before reporting ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]string{}
		var errs []error

		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				checks["database"] = "down"
				errs = append(errs, fmt.Errorf("database: %w", err))
			} else {
				checks["database"] = "up"
			}
		}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				checks["redis"] = "down"
				errs = append(errs, fmt.Errorf("redis: %w", err))
			} else {
				checks["redis"] = "up"
			}
		}

		if len(errs) > 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, multierr.Combine(errs...), "dependency check failed").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
