package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/baechuer/meeting-machine/internal/application/signup"
	"github.com/baechuer/meeting-machine/internal/audit"
	"github.com/baechuer/meeting-machine/internal/config"
	"github.com/baechuer/meeting-machine/internal/infrastructure/crm"
	"github.com/baechuer/meeting-machine/internal/infrastructure/db/postgres"
	"github.com/baechuer/meeting-machine/internal/infrastructure/memory"
	rabbitmq_pub "github.com/baechuer/meeting-machine/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/meeting-machine/internal/infrastructure/redis"
	"github.com/baechuer/meeting-machine/internal/infrastructure/security"
	"github.com/baechuer/meeting-machine/internal/logger"
	http_handlers "github.com/baechuer/meeting-machine/internal/transport/http/handlers"
	"github.com/baechuer/meeting-machine/internal/transport/http/middleware"
	"github.com/baechuer/meeting-machine/internal/transport/http/response"
	"github.com/baechuer/meeting-machine/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(DefaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB func(dsn string, debug bool) (*sql.DB, error)

	NewRedis func(addr, password string, db int) *redis.Client

	NewPublisher func(rabbitURL, exchange string) (Publisher, error)

	NewRouter func(router.Deps) (http.Handler, error)

	// NewCRMHTTPClient is optional; nil lets the CRM client build its own.
	NewCRMHTTPClient func() *http.Client
}

type Publisher interface {
	signup.EventPublisher
	Close() error
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()

	// 1) user store
	var (
		users  signup.UserRepo
		pinger http_handlers.Pinger
	)
	switch cfg.UserStore {
	case "memory":
		logger.Logger.Warn().Msg("USER_STORE=memory; accounts are lost on restart")
		users = memory.NewUserRepo()
	default:
		db, err := deps.NewDB(cfg.DatabaseURL, cfg.DBDebug)
		if err != nil {
			return nil, nil, err
		}
		cleanupFns = append(cleanupFns, func() { _ = db.Close() })

		if cfg.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := postgres.Migrate(ctx, db)
			cancel()
			if err != nil {
				runCleanup(cleanupFns)
				return nil, nil, err
			}
		}
		users = postgres.NewUserRepo(db)
		pinger = db
	}

	// 2) redis (best-effort)
	var redisCli *redis.Client
	if deps.NewRedis != nil && cfg.RedisAddr != "" {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := c.Ping(context.Background()); err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable; signup rate limit is per-process")
			_ = c.Close()
		} else {
			logger.Logger.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 3) publisher
	var pub Publisher = memory.NewNoopPublisher()
	if cfg.RabbitURL != "" && deps.NewPublisher != nil {
		p, err := deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		switch {
		case err == nil:
			pub = p
		case cfg.Env == "prod":
			runCleanup(cleanupFns)
			return nil, nil, fmt.Errorf("rabbitmq: %w", err)
		default:
			logger.Logger.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
		}
	}
	cleanupFns = append(cleanupFns, func() { _ = pub.Close() })

	// 4) security
	logger.Logger.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt signer")
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	signer := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)

	// 5) crm
	var crmHTTP *http.Client
	if deps.NewCRMHTTPClient != nil {
		crmHTTP = deps.NewCRMHTTPClient()
	}
	crmClient := crm.NewClient(cfg.CRM, crmHTTP)
	if !cfg.CRM.Enabled() {
		logger.Logger.Warn().
			Strs("missing", cfg.CRM.Missing()).
			Msg("GoHighLevel integration disabled")
	}

	// 6) service
	svc := signup.NewService(
		users,
		hasher,
		signer,
		crmClient,
		pub,
		signup.Config{
			SessionTTL: cfg.SessionTTL,
			LocationID: cfg.CRM.LocationID,
		},
	).WithAudit(audit.New(logger.Logger))

	// 7) handlers + middleware
	response.ExposeInternalDetails(cfg.Env != "prod")
	secureCookies := cfg.Env == "prod"

	signupH := http_handlers.NewSignupHandler(svc, secureCookies)
	sessionH := http_handlers.NewSessionHandler(signer, secureCookies)
	healthH := http_handlers.NewHealthHandler(pinger, cfg.Presence, cfg.Env)
	crmH := http_handlers.NewCRMHandler(crmClient)

	// rate limit: shared window in redis, per-process otherwise
	var rlSignup func(http.Handler) http.Handler
	clientIP := middleware.ClientIP(cfg.TrustedProxy)
	if redisCli != nil {
		limiter := redis.NewFixedWindowLimiter(redisCli, "rl:signup", cfg.SignupRateLimit, cfg.SignupRateWin)
		rlSignup = middleware.RateLimitByIP(limiter, clientIP, "signup", response.WriteError)
	} else {
		rlSignup = middleware.RateLimitInProcess(cfg.SignupRateLimit, cfg.SignupRateWin, clientIP, "signup", response.WriteError)
	}

	// 8) router
	mux, err := deps.NewRouter(router.Deps{
		Health:         healthH,
		Signup:         signupH,
		Session:        sessionH,
		CRM:            crmH,
		RLSignup:       rlSignup,
		InternalAuthMW: middleware.InternalAuth(cfg.InternalSecret, response.WriteError),
	})
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 9) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	var done bool
	cleanup := func() {
		if done {
			return
		}
		done = true
		runCleanup(cleanupFns)
	}

	return srv, cleanup, nil
}

/*
========================
 Default deps (prod)
========================
*/

// DefaultDeps returns the production constructors; tests override single fields.
func DefaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		NewRedis:   redis.New,
		NewPublisher: func(url, exchange string) (Publisher, error) {
			return rabbitmq_pub.NewPublisher(url, exchange)
		},
		NewRouter: router.New,
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
