package signup

import (
	"context"
	"errors"

	"github.com/baechuer/meeting-machine/internal/domain"
	"github.com/baechuer/meeting-machine/internal/logger"
)

// Signup creates an account, mirrors it to the CRM and issues a session
// token. Only validation, duplicate email and internal failures abort the
// flow; the CRM outcome is reported in Result.CRM. Not idempotent.
func (s *Service) Signup(ctx context.Context, raw Input) (Result, error) {
	in := raw.Normalize()

	// 1) validate before touching anything
	if err := Validate(in); err != nil {
		s.audit.SignupRejected(ctx, in.Email, "validation_failed")
		return Result{}, err
	}

	// 2) uniqueness fast path
	exists, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return Result{}, asInternal(err)
	}
	if exists {
		s.audit.SignupRejected(ctx, in.Email, "user_already_exists")
		return Result{}, domain.ErrUserAlreadyExists()
	}

	// 3) hash
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if isDomain(err) {
			return Result{}, err
		}
		return Result{}, domain.ErrHashFailed(err)
	}

	// 4) insert; the store's unique constraint settles concurrent signups
	user, err := s.users.Create(ctx, domain.NewUser{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	})
	if err != nil {
		if domain.Is(err, "user_already_exists") {
			s.audit.SignupRejected(ctx, in.Email, "user_already_exists")
			return Result{}, err
		}
		return Result{}, asInternal(err)
	}

	// 5) CRM mirror, awaited but never fatal
	sync := s.crm.SyncContact(ctx, domain.ContactInput{
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Email:      user.Email,
		LocationID: s.locationID,
	})
	if !sync.OK() {
		s.audit.CRMSyncFailed(ctx, user.ID, user.Email, string(sync.Status), sync.Message())
	}

	// 6) session token
	token, err := s.tokens.SignSessionToken(user.ID, s.sessionTTL)
	if err != nil {
		if isDomain(err) {
			return Result{}, err
		}
		return Result{}, domain.ErrTokenSignFailed(err)
	}

	// 7) announce
	if s.pub != nil {
		evt := UserSignedUpEvent{
			UserID:     user.ID,
			Email:      user.Email,
			FirstName:  user.FirstName,
			LastName:   user.LastName,
			CRMStatus:  string(sync.Status),
			OccurredAt: s.now().UTC(),
		}
		if err := s.pub.PublishUserSignedUp(ctx, evt); err != nil {
			logger.WithCtx(ctx).Warn().Err(err).Str("user_id", user.ID).Msg("publish user.signed_up failed")
		}
	}

	s.audit.SignupSucceeded(ctx, user.ID, user.Email, string(sync.Status))
	return Result{User: user, Token: token, CRM: sync}, nil
}

func isDomain(err error) bool {
	var de *domain.Error
	return errors.As(err, &de)
}

// asInternal keeps domain errors as they are and wraps anything else as a
// database failure.
func asInternal(err error) error {
	if isDomain(err) {
		return err
	}
	return domain.ErrDB(err)
}
