package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stafflink/internal/events"
	"stafflink/internal/messaging/kafka"
	"stafflink/internal/shared/contextutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Request is a fire-and-forget message. Aggregate fields say which record
// triggered it and become the Kafka key.
type Request struct {
	Channel       Channel
	To            string
	Subject       string
	Message       string
	HTML          string
	AggregateType string
	AggregateID   string
}

var ErrNoRecipient = errors.New("notification has no recipient")

type Notifier interface {
	Notify(ctx context.Context, req Request) error
}

type outboxNotifier struct {
	outbox kafka.OutboxRepository
	now    func() time.Time
}

// NewOutboxNotifier queues requests in the outbox table; the worker relays
// them to Kafka and the consumer performs delivery.
func NewOutboxNotifier(outbox kafka.OutboxRepository) Notifier {
	return &outboxNotifier{outbox: outbox, now: time.Now}
}

func (n *outboxNotifier) Notify(ctx context.Context, req Request) error {
	if req.To == "" {
		return ErrNoRecipient
	}
	if req.Channel == "" {
		req.Channel = ChannelEmail
	}

	rid := contextutil.GetRequestID(ctx)
	event := events.NotificationRequestedEvent{
		EventType:     events.NotificationRequestedEventType,
		RequestID:     rid,
		Channel:       string(req.Channel),
		To:            req.To,
		Subject:       req.Subject,
		Message:       req.Message,
		HTML:          req.HTML,
		AggregateType: req.AggregateType,
		AggregateID:   req.AggregateID,
		OccurredAt:    n.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}

	return n.outbox.Create(ctx, kafka.OutboxEvent{
		ID:            uuid.New().String(),
		RequestID:     rid,
		AggregateType: req.AggregateType,
		AggregateID:   req.AggregateID,
		EventType:     events.NotificationRequestedEventType,
		Topic:         events.NotificationRequestedTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	})
}

// Nop drops every request. Used when no outbox is wired.
type Nop struct{}

func (Nop) Notify(context.Context, Request) error { return nil }

// BestEffort sends req and only logs a failure; callers never fail on it.
func BestEffort(ctx context.Context, n Notifier, logger *zap.Logger, req Request) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, req); err != nil {
		logger.Warn("notification not queued",
			append(contextutil.LogFields(ctx),
				zap.String("channel", string(req.Channel)),
				zap.String("aggregate_type", req.AggregateType),
				zap.String("aggregate_id", req.AggregateID),
				zap.Error(err),
			)...,
		)
	}
}
