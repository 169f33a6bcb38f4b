package memory

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/totp-auth/internal/application/auth"
)

// NoopPublisher logs security events instead of sending them to a broker.
type NoopPublisher struct {
	log zerolog.Logger
}

func NewNoopPublisher(log zerolog.Logger) *NoopPublisher { return &NoopPublisher{log: log} }

func (p *NoopPublisher) PublishSecurityEvent(ctx context.Context, evt auth.SecurityEvent) error {
	p.log.Debug().
		Str("event", evt.Type).
		Str("user_id", evt.UserID).
		Time("at", evt.At).
		Msg("noop publish")
	return nil
}
