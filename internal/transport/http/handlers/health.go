package http_handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/baechuer/totp-auth/internal/logger"
	"github.com/baechuer/totp-auth/internal/transport/http/dto"
	"github.com/baechuer/totp-auth/internal/transport/http/response"
)

const readyTimeout = 2 * time.Second

// Pinger is implemented by every credential store backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.OK(w, dto.HealthResponse{Status: "ok"})
}

// Readyz handles GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := h.store.Ping(ctx); err != nil {
			l := logger.WithCtx(r.Context())
			l.Warn().Err(err).Msg("readiness check failed")
			response.WriteJSON(w, http.StatusServiceUnavailable, dto.HealthResponse{Status: "unavailable"})
			return
		}
	}

	response.OK(w, dto.HealthResponse{Status: "ready"})
}
