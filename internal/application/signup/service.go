package signup

import (
	"context"
	"time"

	"github.com/baechuer/meeting-machine/internal/domain"
)

type Service struct {
	users  UserRepo
	hasher PasswordHasher
	tokens TokenIssuer
	crm    ContactSyncer
	pub    EventPublisher
	audit  Auditor

	sessionTTL time.Duration
	locationID string
	now        func() time.Time
}

type Config struct {
	SessionTTL time.Duration
	LocationID string
}

func NewService(
	users UserRepo,
	hasher PasswordHasher,
	tokens TokenIssuer,
	crm ContactSyncer,
	pub EventPublisher,
	cfg Config,
) *Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		crm:    crm,
		pub:    pub,
		audit:  nopAuditor{},

		sessionTTL: ttl,
		locationID: cfg.LocationID,
		now:        time.Now,
	}
}

func (s *Service) WithAudit(a Auditor) *Service {
	if a != nil {
		s.audit = a
	}
	return s
}

// SessionTTL is the lifetime the issued token and its cookie share.
func (s *Service) SessionTTL() time.Duration { return s.sessionTTL }

// Result is what a successful signup hands back to the transport layer.
type Result struct {
	User  domain.User
	Token string
	CRM   domain.SyncResult
}

type nopAuditor struct{}

func (nopAuditor) SignupSucceeded(context.Context, string, string, string)       {}
func (nopAuditor) SignupRejected(context.Context, string, string)                {}
func (nopAuditor) CRMSyncFailed(context.Context, string, string, string, string) {}
