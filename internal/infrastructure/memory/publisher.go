package memory

import (
	"context"

	"github.com/baechuer/meeting-machine/internal/application/signup"
	"github.com/baechuer/meeting-machine/internal/logger"
)

// NoopPublisher stands in when no broker is configured. It only logs.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) PublishUserSignedUp(ctx context.Context, evt signup.UserSignedUpEvent) error {
	logger.WithCtx(ctx).Debug().
		Str("user_id", evt.UserID).
		Str("crm_status", evt.CRMStatus).
		Msg("noop-pub: user.signed_up")
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
