package signup

import (
	"context"
	"time"

	"github.com/baechuer/meeting-machine/internal/domain"
)

/*
UserRepo
--------
Persistence port for accounts.
Create must enforce email uniqueness atomically; ExistsByEmail is only the
fast path for the common case.
*/
type UserRepo interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u domain.NewUser) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// PasswordHasher abstracts bcrypt.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

/*
TokenIssuer
-----------
Issues the session token placed in the auth cookie.
*/
type TokenIssuer interface {
	SignSessionToken(userID string, ttl time.Duration) (string, error)
}

/*
ContactSyncer
-------------
Best-effort CRM mirror. Implementations report every outcome through
SyncResult and never fail the caller.
*/
type ContactSyncer interface {
	SyncContact(ctx context.Context, in domain.ContactInput) domain.SyncResult
}

/*
EventPublisher
--------------
Announces new accounts to the rest of the platform. Failures are logged by
the service and never surface to the client.
*/
type EventPublisher interface {
	PublishUserSignedUp(ctx context.Context, evt UserSignedUpEvent) error
}

type UserSignedUpEvent struct {
	UserID     string
	Email      string
	FirstName  string
	LastName   string
	CRMStatus  string
	OccurredAt time.Time
}

// Auditor receives business events; *audit.Logger satisfies it.
type Auditor interface {
	SignupSucceeded(ctx context.Context, userID, email, crmStatus string)
	SignupRejected(ctx context.Context, email, reason string)
	CRMSyncFailed(ctx context.Context, userID, email, status, reason string)
}
