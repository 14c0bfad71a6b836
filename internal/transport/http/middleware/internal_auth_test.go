package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baechuer/meeting-machine/internal/domain"
)

// recordErr is a WriteErrFunc that writes the bare status for a domain kind.
func recordErr(w http.ResponseWriter, _ *http.Request, err error) {
	status := map[domain.ErrKind]int{
		domain.KindAuth:        http.StatusUnauthorized,
		domain.KindRateLimited: http.StatusTooManyRequests,
	}[domain.KindOf(err)]
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
}

func TestInternalAuth(t *testing.T) {
	cases := []struct {
		name       string
		configured string
		header     *string
		want       int
	}{
		{"no header", "super-secret", nil, http.StatusUnauthorized},
		{"wrong secret", "super-secret", ptr("nope"), http.StatusUnauthorized},
		{"prefix of secret", "super-secret", ptr("super"), http.StatusUnauthorized},
		{"right secret", "super-secret", ptr("super-secret"), http.StatusOK},
		{"unconfigured", "", ptr(""), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/internal/crm/connection", nil)
			if tc.header != nil {
				r.Header.Set(HeaderInternalSecret, *tc.header)
			}
			rr := httptest.NewRecorder()

			InternalAuth(tc.configured, recordErr)(okHandler()).ServeHTTP(rr, r)

			assert.Equal(t, tc.want, rr.Code)
		})
	}
}

func ptr(s string) *string { return &s }
