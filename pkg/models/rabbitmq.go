package models

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys for token audit events
const (
	RoutingKeyTokenIssued = "token.issued"
)

// TokenIssuedEvent is published after a platform JWT is minted.
// It never carries the token itself.
type TokenIssuedEvent struct {
	JTI            string         `json:"jti"`
	Subject        string         `json:"subject"`
	TokenType      ExchangeType   `json:"token_type"`
	ExchangeSource ExchangeSource `json:"exchange_source"`
	IssuedAt       int64          `json:"issued_at"`
	ExpiresAt      int64          `json:"expires_at"`
}

// AMQPCarrier implements propagation.TextMapCarrier for RabbitMQ headers
type AMQPCarrier struct {
	Headers amqp.Table
}

// Get returns the value associated with the passed key.
func (c *AMQPCarrier) Get(key string) string {
	if c.Headers == nil {
		return ""
	}
	if val, ok := c.Headers[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// Set stores the key-value pair.
func (c *AMQPCarrier) Set(key, val string) {
	if c.Headers == nil {
		c.Headers = make(amqp.Table)
	}
	c.Headers[key] = val
}

// Keys lists the keys stored in this carrier.
func (c *AMQPCarrier) Keys() []string {
	if c.Headers == nil {
		return []string{}
	}
	keys := make([]string, 0, len(c.Headers))
	for k := range c.Headers {
		keys = append(keys, k)
	}
	return keys
}

// PublishOptions contains options for publishing messages
type PublishOptions struct {
	Mandatory   bool
	ContentType string
	Headers     amqp.Table
	MessageID   string
	Timestamp   time.Time
	Type        string
	AppID       string
}
