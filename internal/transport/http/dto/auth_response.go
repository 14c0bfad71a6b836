package dto

import (
	"time"

	"github.com/baechuer/meeting-machine/internal/application/signup"
	"github.com/baechuer/meeting-machine/internal/domain"
)

// -------- Signup --------

type SignupResponse struct {
	Success        bool           `json:"success"`
	User           UserView       `json:"user"`
	GHLIntegration GHLIntegration `json:"ghlIntegration"`
}

// UserView never includes the password hash.
type UserView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// GHLIntegration annotates the response with the CRM outcome. Error is null
// when the contact was created.
type GHLIntegration struct {
	Enabled        bool    `json:"enabled"`
	ContactCreated bool    `json:"contactCreated"`
	Error          *string `json:"error"`
}

func NewSignupResponse(res signup.Result) SignupResponse {
	return SignupResponse{
		Success: true,
		User: UserView{
			ID:        res.User.ID,
			Email:     res.User.Email,
			FirstName: res.User.FirstName,
			LastName:  res.User.LastName,
		},
		GHLIntegration: NewGHLIntegration(res.CRM),
	}
}

func NewGHLIntegration(r domain.SyncResult) GHLIntegration {
	out := GHLIntegration{
		Enabled:        r.Enabled(),
		ContactCreated: r.OK() && r.Contact != nil,
	}
	if !out.ContactCreated {
		msg := r.Message()
		if msg == "" {
			msg = "CRM returned no contact"
		}
		out.Error = &msg
	}
	return out
}

// -------- Session --------

// SessionResponse describes the caller's current session cookie.
type SessionResponse struct {
	Authenticated bool      `json:"authenticated"`
	UserID        string    `json:"userId"`
	ExpiresAt     time.Time `json:"expiresAt"`
}
