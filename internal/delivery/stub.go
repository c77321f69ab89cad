package delivery

import (
	"context"

	"outreach_portal_backend/internal/actionqueue/domain"
	"outreach_portal_backend/platform/logger"
)

// StubProvider acknowledges sends without an upstream integration. Used for
// channels whose provider API is not yet wired (social, SMS, voice); the
// queue semantics are identical to a real transport.
type StubProvider struct {
	channel domain.Channel
	log     *logger.Logger
}

// NewStubProvider creates an acknowledging provider for the given channel.
func NewStubProvider(channel domain.Channel, log *logger.Logger) *StubProvider {
	return &StubProvider{channel: channel, log: log}
}

// Channel returns the provider's channel.
func (p *StubProvider) Channel() domain.Channel {
	return p.channel
}

// Send logs the outbound message and reports success.
func (p *StubProvider) Send(_ context.Context, msg Message) error {
	p.log.Info("stub delivery",
		"channel", p.channel,
		"via", msg.Via,
		"to", msg.To,
		"action_type", msg.ActionType,
	)
	return nil
}
