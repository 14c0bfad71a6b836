package http_handlers

import (
	"net/http"

	"github.com/baechuer/meeting-machine/internal/application/signup"
	"github.com/baechuer/meeting-machine/internal/domain"
	"github.com/baechuer/meeting-machine/internal/infrastructure/security"
	"github.com/baechuer/meeting-machine/internal/logger"
	"github.com/baechuer/meeting-machine/internal/transport/http/dto"
	"github.com/baechuer/meeting-machine/internal/transport/http/middleware"
	"github.com/baechuer/meeting-machine/internal/transport/http/response"
)

type SignupHandler struct {
	svc           *signup.Service
	secureCookies bool
}

func NewSignupHandler(svc *signup.Service, secureCookies bool) *SignupHandler {
	return &SignupHandler{
		svc:           svc,
		secureCookies: secureCookies,
	}
}

// Signup handles POST /api/auth/signup
func (h *SignupHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		middleware.SignupsTotal.WithLabelValues("validation_failed").Inc()
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Signup(r.Context(), req.ToInput())
	if err != nil {
		middleware.SignupsTotal.WithLabelValues(outcome(err)).Inc()
		response.WriteError(w, r, err)
		return
	}

	middleware.SignupsTotal.WithLabelValues("success").Inc()
	middleware.CRMSyncTotal.WithLabelValues(string(res.CRM.Status)).Inc()

	logger.WithCtx(r.Context()).Info().
		Str("user_id", res.User.ID).
		Str("crm_status", string(res.CRM.Status)).
		Msg("user_signed_up")

	security.SetSessionCookie(w, res.Token, h.svc.SessionTTL(), h.secureCookies)
	response.OK(w, dto.NewSignupResponse(res))
}

func outcome(err error) string {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return "validation_failed"
	case domain.KindDuplicate:
		return "user_already_exists"
	default:
		return "error"
	}
}
