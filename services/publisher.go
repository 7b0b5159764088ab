package services

import (
	"context"
	"time"

	"transaction-service/models"
)

// EventPublisher delivers lifecycle events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, event models.TransactionEvent) error
	PublishDelayed(ctx context.Context, event models.TransactionEvent, delay time.Duration) error
}

// NopPublisher drops every event. It is used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.TransactionEvent) error { return nil }

func (NopPublisher) PublishDelayed(context.Context, models.TransactionEvent, time.Duration) error {
	return nil
}
