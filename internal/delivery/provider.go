// Package delivery abstracts the outbound channels the dispatcher sends
// through: SMTP email plus stub transports for social, SMS, and voice.
package delivery

import (
	"context"

	"outreach_portal_backend/internal/actionqueue/domain"
	"outreach_portal_backend/platform/apperr"
)

// Message is one outbound touch ready for a provider.
type Message struct {
	// Via is the resource value the message goes out through: a sending
	// domain, phone number, or seat handle.
	Via        string
	To         string
	ToName     string
	ActionType string
	Subject    string
	Body       string
}

// Provider delivers messages on one channel.
type Provider interface {
	Channel() domain.Channel
	Send(ctx context.Context, msg Message) error
}

// Registry resolves the provider for a channel.
type Registry struct {
	providers map[domain.Channel]Provider
}

// NewRegistry builds a registry from the given providers.
func NewRegistry(providers ...Provider) *Registry {
	reg := &Registry{providers: make(map[domain.Channel]Provider, len(providers))}
	for _, p := range providers {
		reg.providers[p.Channel()] = p
	}
	return reg
}

// For returns the provider for a channel.
func (r *Registry) For(channel domain.Channel) (Provider, error) {
	p, ok := r.providers[channel]
	if !ok {
		return nil, apperr.Internal("no provider for channel " + string(channel))
	}
	return p, nil
}
