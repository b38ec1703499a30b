package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicpulse/platform-token/pkg/models"
)

// Publisher sends token audit events to RabbitMQ.
type Publisher interface {
	// Publish publishes a JSON message to an exchange
	Publish(ctx context.Context, exchange, routingKey string, message any) error
	// PublishWithOptions publishes a message with custom options
	PublishWithOptions(ctx context.Context, exchange, routingKey string, message any, options models.PublishOptions) error
	// DeclareExchange declares a durable exchange
	DeclareExchange(ctx context.Context, exchange, kind string) error
	// Close closes the channel and the connection
	Close() error
}

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Close() error
}

type publisher struct {
	conn       io.Closer
	channel    channel
	appID      string
	logger     *logrus.Logger
	tracer     trace.TracerProvider
	propagator propagation.TextMapPropagator
	now        func() time.Time
}

// NewPublisher dials url, opens a channel and declares exchange as a durable
// topic exchange.
func NewPublisher(url, exchange, appID string, logger *logrus.Logger, tracer trace.TracerProvider) (Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		logger.Errorf("Failed to connect to RabbitMQ: error=%s", err.Error())
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		logger.Errorf("Failed to open RabbitMQ channel: error=%s", err.Error())
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p := newPublisher(conn, ch, appID, logger, tracer)
	if err := p.DeclareExchange(context.Background(), exchange, amqp.ExchangeTopic); err != nil {
		p.Close()
		return nil, err
	}

	logger.Infof("Connected to RabbitMQ: exchange=%s", exchange)
	return p, nil
}

func newPublisher(conn io.Closer, ch channel, appID string, logger *logrus.Logger, tracer trace.TracerProvider) *publisher {
	return &publisher{
		conn:       conn,
		channel:    ch,
		appID:      appID,
		logger:     logger,
		tracer:     tracer,
		propagator: otel.GetTextMapPropagator(),
		now:        time.Now,
	}
}

func (p *publisher) trace(ctx context.Context, operation string) (context.Context, trace.Span) {
	tracer := p.tracer.Tracer("rabbitmq.client")
	return tracer.Start(ctx, fmt.Sprintf("rabbitmq.%s", operation))
}

// Publish publishes a message to an exchange
func (p *publisher) Publish(ctx context.Context, exchange, routingKey string, message any) error {
	return p.PublishWithOptions(ctx, exchange, routingKey, message, models.PublishOptions{Type: routingKey})
}

// PublishWithOptions publishes a message with custom options
func (p *publisher) PublishWithOptions(ctx context.Context, exchange, routingKey string, message any, options models.PublishOptions) error {
	ctx, span := p.trace(ctx, "publish")
	defer span.End()

	span.SetAttributes(
		attribute.String("rabbitmq.exchange", exchange),
		attribute.String("rabbitmq.routing_key", routingKey),
	)

	var body []byte
	switch v := message.(type) {
	case []byte:
		body = v
	case string:
		body = []byte(v)
	default:
		var err error
		body, err = json.Marshal(message)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.logger.Errorf("Failed to marshal message: exchange=%s, routing_key=%s, error=%s", exchange, routingKey, err.Error())
			return fmt.Errorf("failed to marshal message: %w", err)
		}
	}

	contentType := options.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	publishing := amqp.Publishing{
		ContentType:  contentType,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		Type:         options.Type,
		AppId:        p.appID,
		Headers:      make(amqp.Table),
	}
	if options.AppID != "" {
		publishing.AppId = options.AppID
	}
	if !options.Timestamp.IsZero() {
		publishing.Timestamp = options.Timestamp
	}
	maps.Copy(publishing.Headers, options.Headers)
	if options.MessageID != "" {
		publishing.MessageId = options.MessageID
		publishing.Headers["x-message-id"] = options.MessageID
	}

	// W3C trace context travels in the message headers
	carrier := &models.AMQPCarrier{Headers: publishing.Headers}
	p.propagator.Inject(ctx, carrier)
	publishing.Headers = carrier.Headers

	if err := p.channel.PublishWithContext(ctx, exchange, routingKey, options.Mandatory, false, publishing); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Errorf("Failed to publish message to RabbitMQ: exchange=%s, routing_key=%s, error=%s", exchange, routingKey, err.Error())
		return fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.Int("rabbitmq.message_size", len(body)))
	span.SetStatus(codes.Ok, "Message published successfully")
	p.logger.Debugf("Message published: exchange=%s, routing_key=%s, message_size=%d", exchange, routingKey, len(body))
	return nil
}

// DeclareExchange declares a durable, non-internal exchange
func (p *publisher) DeclareExchange(ctx context.Context, exchange, kind string) error {
	_, span := p.trace(ctx, "declare_exchange")
	defer span.End()

	span.SetAttributes(
		attribute.String("rabbitmq.exchange", exchange),
		attribute.String("rabbitmq.exchange_type", kind),
	)

	if err := p.channel.ExchangeDeclare(exchange, kind, true, false, false, false, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Errorf("Failed to declare exchange in RabbitMQ: exchange=%s, error=%s", exchange, err.Error())
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	span.SetStatus(codes.Ok, "Exchange declared successfully")
	return nil
}

// Close closes the channel, then the connection
func (p *publisher) Close() error {
	var errs []error

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
			p.logger.Errorf("Failed to close RabbitMQ channel: error=%s", err.Error())
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
			p.logger.Errorf("Failed to close RabbitMQ connection: error=%s", err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing RabbitMQ: %v", errs)
	}

	p.logger.Info("RabbitMQ connection closed")
	return nil
}
