// Package rabbitmq publishes transaction lifecycle events to RabbitMQ.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"transaction-service/config"
	"transaction-service/models"
)

// channel is the part of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config

	publisher channel
	logger    *zap.Logger
}

func NewRabbitMQ(cfg *config.Config, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitMQ{
		Conn:      conn,
		Channel:   ch,
		Cfg:       cfg,
		publisher: ch,
		logger:    logger,
	}, nil
}

func (r *RabbitMQ) deadLetterExchange() string {
	return r.Cfg.DeadLetterQueue + "_exchange"
}

// SetupQueues declares the transaction exchange, the dead-letter exchange
// and queue, the delayed exchange and the priority transaction queue.
func (r *RabbitMQ) SetupQueues() error {
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.TransactionExchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", r.Cfg.TransactionExchange, err)
	}

	if err := r.Channel.ExchangeDeclare(
		r.deadLetterExchange(),
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", r.deadLetterExchange(), err)
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", r.Cfg.DeadLetterQueue, err)
	}

	if err := r.Channel.QueueBind(r.Cfg.DeadLetterQueue, r.Cfg.DeadLetterQueue, r.deadLetterExchange(), false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", r.Cfg.DeadLetterQueue, err)
	}

	// Needs the rabbitmq_delayed_message_exchange plugin.
	delayed := true
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DelayExchange,
		"x-delayed-message",
		true,
		false,
		false,
		false,
		amqp.Table{"x-delayed-type": "direct"},
	); err != nil {
		delayed = false
		r.logger.Warn("delayed exchange not supported, payment checks disabled", zap.Error(err))
		// A failed declare closes the channel.
		if r.Conn != nil {
			ch, chErr := r.Conn.Channel()
			if chErr != nil {
				return fmt.Errorf("reopen channel: %w", chErr)
			}
			r.Channel, r.publisher = ch, ch
		}
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.TransactionQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    r.deadLetterExchange(),
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", r.Cfg.TransactionQueue, err)
	}

	if err := r.Channel.QueueBind(r.Cfg.TransactionQueue, "", r.Cfg.TransactionExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", r.Cfg.TransactionQueue, err)
	}
	if delayed {
		if err := r.Channel.QueueBind(r.Cfg.TransactionQueue, "", r.Cfg.DelayExchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", r.Cfg.TransactionQueue, r.Cfg.DelayExchange, err)
		}
	}

	return nil
}

// newPublishing encodes event as a persistent JSON message carrying the
// event's priority.
func newPublishing(event models.TransactionEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		Type:         string(event.Type),
		MessageId:    event.TransactionID + ":" + string(event.Type),
		Body:         body,
		Priority:     event.Priority(),
	}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, event models.TransactionEvent) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}
	return r.publisher.PublishWithContext(ctx,
		r.Cfg.TransactionExchange,
		"",
		false, // mandatory
		false, // immediate
		msg,
	)
}

// PublishDelayed holds event in the delayed exchange for delay before it
// reaches the transaction queue.
func (r *RabbitMQ) PublishDelayed(ctx context.Context, event models.TransactionEvent, delay time.Duration) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}
	msg.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
	return r.publisher.PublishWithContext(ctx,
		r.Cfg.DelayExchange,
		"",
		false,
		false,
		msg,
	)
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			r.logger.Warn("close rabbitmq channel", zap.Error(err))
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			r.logger.Warn("close rabbitmq connection", zap.Error(err))
		}
	}
}
