package response

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/baechuer/meeting-machine/internal/domain"
	"github.com/baechuer/meeting-machine/internal/logger"
)

type ErrorBody struct {
	Success bool         `json:"success"`
	Error   ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Details   string            `json:"details,omitempty"`
}

var kindStatus = map[domain.ErrKind]int{
	domain.KindValidation:  http.StatusBadRequest,
	domain.KindDuplicate:   http.StatusBadRequest,
	domain.KindAuth:        http.StatusUnauthorized,
	domain.KindNotFound:    http.StatusNotFound,
	domain.KindRateLimited: http.StatusTooManyRequests,
	domain.KindInternal:    http.StatusInternalServerError,
}

var exposeDetails atomic.Bool

// ExposeInternalDetails controls whether 500 bodies carry the cause message.
// Bootstrap enables it outside prod.
func ExposeInternalDetails(on bool) { exposeDetails.Store(on) }

// statusFromKind falls back to 500 for kinds it does not know.
func statusFromKind(kind domain.ErrKind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WriteError renders err as the JSON error envelope. Anything that is not a
// *domain.Error is reported as internal_error.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	de := asDomain(err)
	status := statusFromKind(de.Kind)

	payload := ErrorPayload{
		Code:      de.Code,
		Message:   de.Message,
		Meta:      de.Meta,
		RequestID: RequestIDFromContext(r),
	}

	if status >= http.StatusInternalServerError {
		logger.WithCtx(r.Context()).Error().
			Err(err).
			Str("code", de.Code).
			Int("status", status).
			Msg("request failed")
		if exposeDetails.Load() && err != nil {
			payload.Details = err.Error()
		}
	}

	WriteJSON(w, status, ErrorBody{Error: payload})
}

func asDomain(err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.New(domain.KindInternal, "internal_error", "Internal server error")
}
