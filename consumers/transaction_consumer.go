// Package consumers reacts to transaction events delivered by RabbitMQ.
package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"transaction-service/config"
	"transaction-service/models"
)

// Transactions is the part of the lifecycle service the consumer drives.
type Transactions interface {
	GetTransactionByID(ctx context.Context, id string) (models.TransactionView, error)
	CancelTransaction(ctx context.Context, id string) (models.TransactionView, error)
}

type TransactionConsumer struct {
	transactions Transactions
	logger       *zap.Logger
}

func NewTransactionConsumer(transactions Transactions, logger *zap.Logger) *TransactionConsumer {
	return &TransactionConsumer{transactions: transactions, logger: logger}
}

// Start consumes the transaction queue and its dead-letter queue until ctx
// is done or the channel closes.
func (c *TransactionConsumer) Start(ctx context.Context, ch *amqp.Channel, cfg *config.Config) error {
	msgs, err := ch.ConsumeWithContext(ctx,
		cfg.TransactionQueue,
		"transaction-service", // consumer tag
		false,                 // auto-ack
		false,                 // exclusive
		false,                 // no-local
		false,                 // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.TransactionQueue, err)
	}
	go func() {
		for msg := range msgs {
			c.processMessage(ctx, msg)
		}
	}()

	dlqMsgs, err := ch.ConsumeWithContext(ctx,
		cfg.DeadLetterQueue,
		"transaction-service-dlq",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		c.logger.Error("failed to consume dead-letter queue",
			zap.String("queue", cfg.DeadLetterQueue), zap.Error(err))
		return nil
	}
	go func() {
		for msg := range dlqMsgs {
			c.processDeadLetter(msg)
		}
	}()
	return nil
}

func (c *TransactionConsumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered from panic in message processing", zap.Any("panic", r))
			c.nack(msg)
		}
	}()

	var event models.TransactionEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil || event.TransactionID == "" || event.Type == "" {
		c.logger.Warn("invalid message, dead-lettering", zap.ByteString("body", msg.Body), zap.Error(err))
		c.nack(msg)
		return
	}

	c.logger.Info("processing transaction event",
		zap.String("transaction_id", event.TransactionID),
		zap.String("type", string(event.Type)))

	switch event.Type {
	case models.EventPaymentCheck:
		c.handlePaymentCheck(ctx, event.TransactionID)
	case models.EventCreated, models.EventDraftCreated, models.EventUpdated, models.EventConfirmed,
		models.EventCompleted, models.EventCancelled, models.EventDeleted:
	default:
		c.logger.Warn("unknown event type", zap.String("type", string(event.Type)))
	}

	if err := msg.Ack(false); err != nil {
		c.logger.Error("failed to ack message", zap.Error(err))
	}
}

func (c *TransactionConsumer) nack(msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		c.logger.Error("failed to nack message", zap.Error(err))
	}
}

func (c *TransactionConsumer) processDeadLetter(msg amqp.Delivery) {
	c.logger.Warn("received dead letter", zap.ByteString("body", msg.Body))
	if err := msg.Ack(false); err != nil {
		c.logger.Error("failed to ack dead letter", zap.Error(err))
	}
}

// handlePaymentCheck cancels a transaction that is still PENDING when its
// payment window closes, returning its stock.
func (c *TransactionConsumer) handlePaymentCheck(ctx context.Context, id string) {
	t, err := c.transactions.GetTransactionByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		c.logger.Info("payment check for deleted transaction", zap.String("transaction_id", id))
		return
	}
	if err != nil {
		c.logger.Error("failed to load transaction", zap.String("transaction_id", id), zap.Error(err))
		return
	}
	if t.Status != models.StatusPending {
		return
	}

	_, err = c.transactions.CancelTransaction(ctx, id)
	switch {
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrIllegalState):
		c.logger.Info("transaction moved on before payment check",
			zap.String("transaction_id", id), zap.Error(err))
		return
	case err != nil:
		c.logger.Error("failed to auto-cancel transaction", zap.String("transaction_id", id), zap.Error(err))
		return
	}
	c.logger.Info("auto-cancelled transaction due to non-payment", zap.String("transaction_id", id))
}
