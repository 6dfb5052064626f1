package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/baechuer/cityevents/services/crop-service/internal/config"
	"github.com/baechuer/cityevents/services/crop-service/internal/domain"
	"github.com/baechuer/cityevents/services/crop-service/internal/metrics"
)

// ReferenceProcessor creates the missing croppings of one file reference.
type ReferenceProcessor interface {
	ProcessReference(ctx context.Context, referenceID int64, path []string) (int, error)
}

// Consumer consumes reference update events from RabbitMQ.
type Consumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queue     string
	processor ReferenceProcessor
	log       zerolog.Logger
}

// NewConsumer creates a new RabbitMQ consumer bound to reference update events.
func NewConsumer(cfg *config.Config, processor ReferenceProcessor, log zerolog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareExchange(ch, cfg.RabbitExchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	q, err := ch.QueueDeclare(
		cfg.RabbitQueue,
		true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = ch.QueueBind(q.Name, cfg.UpdateRoutingKey, cfg.RabbitExchange, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	return &Consumer{
		conn:      conn,
		channel:   ch,
		queue:     cfg.RabbitQueue,
		processor: processor,
		log:       log,
	}, nil
}

// Run starts consuming messages.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.log.Info().Str("queue", c.queue).Msg("crop-service started consuming")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			c.processMessage(ctx, msg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	var m domain.ReferenceUpdatedMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil || m.ReferenceID <= 0 {
		c.log.Error().Err(err).Msg("failed to unmarshal message")
		c.settle(msg, "rejected", func() error { return msg.Nack(false, false) })
		return
	}

	log := c.log.With().Int64("reference_id", m.ReferenceID).Str("path", m.Path).Logger()

	path := splitPath(m.Path)
	created, err := c.processor.ProcessReference(ctx, m.ReferenceID, path)
	switch {
	case err == nil:
		log.Info().Int("croppings", created).Msg("reference processed")
		c.settle(msg, "ack", func() error { return msg.Ack(false) })
	case errors.Is(err, domain.ErrReferenceNotFound), errors.Is(err, domain.ErrUnknownPath):
		log.Warn().Err(err).Msg("dropping reference update")
		c.settle(msg, "rejected", func() error { return msg.Nack(false, false) })
	default:
		log.Error().Err(err).Msg("failed to process reference")
		c.settle(msg, "requeued", func() error { return msg.Nack(false, true) })
	}
}

func (c *Consumer) settle(msg amqp.Delivery, status string, fn func() error) {
	if err := fn(); err != nil {
		c.log.Error().Err(err).Uint64("delivery_tag", msg.DeliveryTag).Msg("failed to settle message")
	}
	metrics.RecordMessageConsumed(c.queue, status)
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Close closes the consumer.
func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
