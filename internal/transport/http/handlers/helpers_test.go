package http_handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func mustJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(v))
	return &buf
}

func mustReadJSON(t *testing.T, r io.Reader, out any) {
	t.Helper()
	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out), "body=%s", raw)
}

func readCookie(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// withURLParam routes req as if chi had matched {key}=val.
func withURLParam(req *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
