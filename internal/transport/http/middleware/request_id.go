package middleware

import (
	"net/http"

	"github.com/google/uuid"

	appCtx "github.com/baechuer/meeting-machine/internal/pkg/context"
)

const HeaderXRequestID = "X-Request-Id"

// maxRequestIDLen bounds client-supplied ids before they reach logs.
const maxRequestIDLen = 128

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderXRequestID)
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}

		w.Header().Set(HeaderXRequestID, reqID)
		ctx := appCtx.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
