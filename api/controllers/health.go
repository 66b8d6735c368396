package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/bleu-ims/ims-gateway/api/responses"
	"github.com/bleu-ims/ims-gateway/pkg/config"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
	"github.com/bleu-ims/ims-gateway/pkg/redis"
)

const (
	envHeader    = "X-IMS-Env"
	readyTimeout = 2 * time.Second
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the session store when one is configured. A nil pinger
// means sessions are held in memory and nothing needs checking.
func HealthReady(cfg *config.Config, logg *logger.Logger, redisPinger redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]string{"sessions": "memory"}
		if redisPinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := redisPinger.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable").
					WithDetails(map[string]string{"sessions": "redis unreachable"}))
				return
			}
			checks["sessions"] = "redis"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
