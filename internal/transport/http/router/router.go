package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/meeting-machine/internal/transport/http/middleware"
)

// signupBodyLimit is the largest accepted signup payload.
const signupBodyLimit = 1 << 20

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
	EnvCheck(w http.ResponseWriter, r *http.Request)
}

type SignupHandler interface {
	Signup(w http.ResponseWriter, r *http.Request)
}

type SessionHandler interface {
	Session(w http.ResponseWriter, r *http.Request)
	SignOut(w http.ResponseWriter, r *http.Request)
}

type CRMHandler interface {
	Connection(w http.ResponseWriter, r *http.Request)
	CreateTestContact(w http.ResponseWriter, r *http.Request)
	FindContact(w http.ResponseWriter, r *http.Request)
	UpdateContact(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Health  HealthHandler
	Signup  SignupHandler
	Session SessionHandler
	CRM     CRMHandler

	// optional; nil disables
	RLSignup func(http.Handler) http.Handler

	InternalAuthMW func(http.Handler) http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Signup == nil {
		return nil, fmt.Errorf("nil Signup handler")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("nil Session handler")
	}
	if deps.CRM == nil {
		return nil, fmt.Errorf("nil CRM handler")
	}
	if deps.InternalAuthMW == nil {
		return nil, fmt.Errorf("nil InternalAuth middleware")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(middleware.Metrics)

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/env-check", deps.Health.EnvCheck)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BodyLimit(signupBodyLimit))
			if deps.RLSignup != nil {
				r.Use(deps.RLSignup)
			}
			r.Post("/auth/signup", deps.Signup.Signup)
		})

		r.Get("/auth/session", deps.Session.Session)
		r.Post("/auth/signout", deps.Session.SignOut)

		r.Route("/internal/crm", func(r chi.Router) {
			r.Use(deps.InternalAuthMW)
			r.Use(middleware.BodyLimit(signupBodyLimit))

			r.Get("/connection", deps.CRM.Connection)
			r.Post("/test-contact", deps.CRM.CreateTestContact)
			r.Get("/contacts", deps.CRM.FindContact)
			r.Put("/contacts/{id}", deps.CRM.UpdateContact)
		})
	})

	return r, nil
}
