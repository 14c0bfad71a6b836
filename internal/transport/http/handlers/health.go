package http_handlers

import (
	"context"
	"net/http"

	"github.com/baechuer/meeting-machine/internal/transport/http/dto"
	"github.com/baechuer/meeting-machine/internal/transport/http/response"
)

// Pinger is satisfied by *sql.DB. A nil Pinger means no external store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db       Pinger
	presence func() map[string]bool
	env      string
}

func NewHealthHandler(db Pinger, presence func() map[string]bool, env string) *HealthHandler {
	return &HealthHandler{db: db, presence: presence, env: env}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			response.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  "database unavailable",
			})
			return
		}
	}
	response.OK(w, map[string]string{"status": "ready"})
}

// EnvCheck handles GET /api/env-check
func (h *HealthHandler) EnvCheck(w http.ResponseWriter, r *http.Request) {
	var presence map[string]bool
	if h.presence != nil {
		presence = h.presence()
	}
	response.OK(w, dto.NewEnvCheckResponse(presence, h.env))
}
