package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the subset of *amqp.Channel used for publishing.
type amqpChannel interface {
	PublishWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) error
	Close() error
}

// amqpPublisher implements the Publisher interface for a RabbitMQ exchange.
type amqpPublisher struct {
	id         string
	typ        string
	conn       *amqp.Connection
	ch         amqpChannel
	exchange   string
	routingKey string
	log        Logger
}

func newAMQPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.AMQP == nil {
		return nil, fmt.Errorf("publisher %q missing amqp configuration", cfg.ID)
	}

	conn, err := amqp.Dial(cfg.AMQP.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connection failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel creation failed: %w", err)
	}

	exchangeType := cfg.AMQP.ExchangeType
	if exchangeType == "" {
		exchangeType = amqpDefaultExchangeType
	}
	if err := ch.ExchangeDeclare(
		cfg.AMQP.Exchange,
		exchangeType,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("exchange declare failed: %w", err)
	}

	routingKey := cfg.AMQP.RoutingKey
	if routingKey == "" {
		routingKey = amqpDefaultRoutingKey
	}

	return &amqpPublisher{
		id:         cfg.ID,
		typ:        TypeAMQP,
		conn:       conn,
		ch:         ch,
		exchange:   cfg.AMQP.Exchange,
		routingKey: routingKey,
		log:        ensureLogger(log),
	}, nil
}

func (p *amqpPublisher) ID() string   { return p.id }
func (p *amqpPublisher) Type() string { return p.typ }

// Publish sends the event as a persistent JSON message.
func (p *amqpPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := amqp.Table{}
	for k, v := range evt.attributes() {
		headers[k] = v
	}

	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Headers:      headers,
			Timestamp:    evt.SyncedAt,
			Body:         body,
		},
	); err != nil {
		p.log.ErrorObj("amqp publisher send failed", "publisher_amqp_error", map[string]any{
			"publisher_id": p.id,
			"error":        err.Error(),
		})
		return fmt.Errorf("publish to rabbitmq: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *amqpPublisher) Close() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
