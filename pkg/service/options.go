package services

import (
	"context"
	"time"
)

// EventPublisher delivers audit events. Implemented by the RabbitMQ client.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, message any) error
}

// Option customizes a token service.
type Option func(*options)

type options struct {
	now           func() time.Time
	newTokenID    func() string
	publisher     EventPublisher
	eventExchange string
	requireExpiry bool
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithTokenIDGenerator replaces the jti generator.
func WithTokenIDGenerator(gen func() string) Option {
	return func(o *options) {
		o.newTokenID = gen
	}
}

// WithEventPublisher publishes a token.issued event to exchange after every exchange.
func WithEventPublisher(p EventPublisher, exchange string) Option {
	return func(o *options) {
		o.publisher = p
		o.eventExchange = exchange
	}
}

// WithRequireExpiry makes validation reject tokens without an exp claim.
func WithRequireExpiry(require bool) Option {
	return func(o *options) {
		o.requireExpiry = require
	}
}
