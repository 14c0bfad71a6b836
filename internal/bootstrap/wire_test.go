package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/meeting-machine/internal/application/signup"
	"github.com/baechuer/meeting-machine/internal/config"
	"github.com/baechuer/meeting-machine/internal/infrastructure/redis"
	"github.com/baechuer/meeting-machine/internal/transport/http/router"
)

// --------------------------
// helpers
// --------------------------

type fakePublisher struct {
	published atomic.Int32
	closed    atomic.Int32
}

func (p *fakePublisher) PublishUserSignedUp(ctx context.Context, evt signup.UserSignedUpEvent) error {
	p.published.Add(1)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed.Add(1)
	return nil
}

func memoryConfig() *config.Config {
	return &config.Config{
		Env:              "dev",
		HTTPAddr:         ":0",
		UserStore:        "memory",
		JWTSecret:        "test-secret",
		JWTIssuer:        "test",
		SessionTTL:       time.Hour,
		BcryptCost:       4,
		InternalSecret:   "internal",
		SignupRateLimit:  2,
		SignupRateWin:    time.Minute,
		RabbitExchange:   "test.events",
		HTTPReadTimeout:  time.Second,
		HTTPWriteTimeout: 10 * time.Second,
		HTTPIdleTimeout:  time.Second,
		CRM: config.CRMConfig{
			BaseURL: config.DefaultCRMBaseURL,
			Timeout: time.Second,
			Source:  "Meeting Machine",
		},
	}
}

func testDeps(cfg *config.Config) Deps {
	return Deps{
		LoadConfig: func() (*config.Config, error) { return cfg, nil },
		NewDB: func(string, bool) (*sql.DB, error) {
			return nil, errors.New("db must not be opened")
		},
		NewRedis:  redis.New,
		NewRouter: router.New,
	}
}

func postSignup(t *testing.T, h http.Handler, email string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"email":"` + email + `","password":"Password123!","firstName":"Ada","lastName":"Lovelace"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --------------------------
// tests
// --------------------------

func TestNewServer_ConfigLoadFails(t *testing.T) {
	deps := testDeps(nil)
	deps.LoadConfig = func() (*config.Config, error) { return nil, errors.New("missing JWT_SECRET") }

	srv, cleanup, err := NewServerWithDeps(deps)

	require.Error(t, err)
	assert.Nil(t, srv)
	assert.Nil(t, cleanup)
}

func TestNewServer_DBConnectFails(t *testing.T) {
	cfg := memoryConfig()
	cfg.UserStore = "postgres"
	cfg.DatabaseURL = "postgres://invalid:5432/db"

	srv, cleanup, err := NewServerWithDeps(testDeps(cfg))

	require.Error(t, err)
	assert.Nil(t, srv)
	assert.Nil(t, cleanup)
}

func TestNewServer_MemoryStore_SignupEndToEnd(t *testing.T) {
	pub := &fakePublisher{}
	cfg := memoryConfig()
	cfg.RabbitURL = "amqp://ignored"

	deps := testDeps(cfg)
	deps.NewPublisher = func(url, exchange string) (Publisher, error) {
		assert.Equal(t, "test.events", exchange)
		return pub, nil
	}

	srv, cleanup, err := NewServerWithDeps(deps)
	require.NoError(t, err)
	require.NotNil(t, srv)
	defer cleanup()

	rr := postSignup(t, srv.Handler, "ada@example.com")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Set-Cookie"), "auth-token=")
	assert.Contains(t, rr.Body.String(), `"enabled":false`)
	assert.Equal(t, int32(1), pub.published.Load())

	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "auth-token" {
			session = c
		}
	}
	require.NotNil(t, session)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(session)
	sr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(sr, req)
	assert.Equal(t, http.StatusOK, sr.Code, sr.Body.String())
	assert.Contains(t, sr.Body.String(), `"authenticated":true`)

	rr = postSignup(t, srv.Handler, "ada@example.com")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNewServer_RabbitUnavailable_Dev_UsesNoop(t *testing.T) {
	cfg := memoryConfig()
	cfg.RabbitURL = "amqp://invalid"

	deps := testDeps(cfg)
	deps.NewPublisher = func(string, string) (Publisher, error) { return nil, errors.New("dial failed") }

	srv, cleanup, err := NewServerWithDeps(deps)
	require.NoError(t, err)
	require.NotNil(t, srv)
	cleanup()
}

func TestNewServer_RabbitUnavailable_Prod_Fails(t *testing.T) {
	cfg := memoryConfig()
	cfg.Env = "prod"
	cfg.RabbitURL = "amqp://invalid"

	deps := testDeps(cfg)
	deps.NewPublisher = func(string, string) (Publisher, error) { return nil, errors.New("dial failed") }

	srv, cleanup, err := NewServerWithDeps(deps)
	require.Error(t, err)
	assert.Nil(t, srv)
	assert.Nil(t, cleanup)
}

func TestNewServer_RedisUnavailable_FallsBackToInProcessLimit(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	srv, cleanup, err := NewServerWithDeps(testDeps(cfg))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, http.StatusOK, postSignup(t, srv.Handler, "a@example.com").Code)
	assert.Equal(t, http.StatusOK, postSignup(t, srv.Handler, "b@example.com").Code)
	assert.Equal(t, http.StatusTooManyRequests, postSignup(t, srv.Handler, "c@example.com").Code)
}

func TestNewServer_RedisRateLimitsSignup(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := memoryConfig()
	cfg.RedisAddr = mr.Addr()

	srv, cleanup, err := NewServerWithDeps(testDeps(cfg))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, http.StatusOK, postSignup(t, srv.Handler, "a@example.com").Code)
	assert.Equal(t, http.StatusOK, postSignup(t, srv.Handler, "b@example.com").Code)

	rr := postSignup(t, srv.Handler, "c@example.com")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestNewServer_RouterError_RunsCleanup(t *testing.T) {
	pub := &fakePublisher{}
	cfg := memoryConfig()
	cfg.RabbitURL = "amqp://ignored"

	deps := testDeps(cfg)
	deps.NewPublisher = func(string, string) (Publisher, error) { return pub, nil }
	deps.NewRouter = func(router.Deps) (http.Handler, error) { return nil, errors.New("boom") }

	srv, cleanup, err := NewServerWithDeps(deps)
	require.Error(t, err)
	assert.Nil(t, srv)
	assert.Nil(t, cleanup)
	assert.Equal(t, int32(1), pub.closed.Load())
}

func TestNewServer_Cleanup_Idempotent(t *testing.T) {
	pub := &fakePublisher{}
	cfg := memoryConfig()
	cfg.RabbitURL = "amqp://ignored"

	deps := testDeps(cfg)
	deps.NewPublisher = func(string, string) (Publisher, error) { return pub, nil }

	srv, cleanup, err := NewServerWithDeps(deps)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = srv.Shutdown(ctx)

	cleanup()
	cleanup()
	assert.Equal(t, int32(1), pub.closed.Load())
}

func TestNewServer_InternalRoutesRequireSecret(t *testing.T) {
	srv, cleanup, err := NewServerWithDeps(testDeps(memoryConfig()))
	require.NoError(t, err)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/internal/crm/connection", nil)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
