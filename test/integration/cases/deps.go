//go:build integration

package cases

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/meeting-machine/internal/bootstrap"
	"github.com/baechuer/meeting-machine/internal/config"
	"github.com/baechuer/meeting-machine/internal/infrastructure/db/postgres"
	itinfra "github.com/baechuer/meeting-machine/test/integration/infra"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	testExchange   = "meetingmachine.it.events"
	internalSecret = "it-internal-secret"
)

// fakeGHL stands in for the GoHighLevel API.
type fakeGHL struct {
	srv    *httptest.Server
	reject atomic.Bool

	mu       sync.Mutex
	contacts []map[string]any
}

func newFakeGHL(t *testing.T) *fakeGHL {
	t.Helper()
	f := &fakeGHL{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if f.reject.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid API Key"}`))
			return
		}
		if r.Method != http.MethodPost || r.URL.Path != "/contacts/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.contacts = append(f.contacts, body)
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{
			"contact": map[string]any{"id": "ghl-it-1", "email": body["email"]},
		})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGHL) Contacts() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.contacts...)
}

type Deps struct {
	DB   *sql.DB
	RDB  *goredis.Client
	AMQP *amqp.Connection
	GHL  *fakeGHL

	API     *httptest.Server
	cleanup func()
}

// MustNewDeps boots the real server against live Postgres, Redis and
// RabbitMQ with the CRM pointed at a local fake.
func MustNewDeps(t *testing.T, env itinfra.Env, rateLimit int) *Deps {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	require.NoError(t, itinfra.WaitPostgres(ctx, env.PostgresDSN))
	require.NoError(t, itinfra.WaitRedis(ctx, env.RedisAddr))
	require.NoError(t, itinfra.WaitRabbit(ctx, env.RabbitURL))

	db, err := sql.Open("pgx", env.PostgresDSN)
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(ctx, db))

	rdb := goredis.NewClient(&goredis.Options{Addr: env.RedisAddr})
	require.NoError(t, itinfra.ResetAll(ctx, db, rdb))

	conn, err := amqp.Dial(env.RabbitURL)
	require.NoError(t, err)

	ghl := newFakeGHL(t)

	cfg := &config.Config{
		Env:              "dev",
		HTTPAddr:         ":0",
		UserStore:        "postgres",
		DatabaseURL:      env.PostgresDSN,
		AutoMigrate:      true,
		JWTSecret:        "integration-test-secret",
		JWTIssuer:        "meeting-machine-it",
		SessionTTL:       time.Hour,
		BcryptCost:       4,
		InternalSecret:   internalSecret,
		RedisAddr:        env.RedisAddr,
		SignupRateLimit:  rateLimit,
		SignupRateWin:    time.Minute,
		RabbitURL:        env.RabbitURL,
		RabbitExchange:   testExchange,
		HTTPReadTimeout:  5 * time.Second,
		HTTPWriteTimeout: 10 * time.Second,
		HTTPIdleTimeout:  time.Minute,
		CRM: config.CRMConfig{
			APIKey:     "it-key-0123456789",
			LocationID: "loc-it",
			BaseURL:    ghl.srv.URL,
			Timeout:    2 * time.Second,
			Source:     "Meeting Machine",
		},
	}

	deps := bootstrap.DefaultDeps()
	deps.LoadConfig = func() (*config.Config, error) { return cfg, nil }

	srv, cleanup, err := bootstrap.NewServerWithDeps(deps)
	require.NoError(t, err)

	return &Deps{
		DB:      db,
		RDB:     rdb,
		AMQP:    conn,
		GHL:     ghl,
		API:     httptest.NewServer(srv.Handler),
		cleanup: cleanup,
	}
}

func (d *Deps) Close(t *testing.T) {
	t.Helper()
	d.API.Close()
	d.cleanup()
	_ = d.AMQP.Close()
	_ = d.RDB.Close()
	_ = d.DB.Close()
}
