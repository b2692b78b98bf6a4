package consumer

import (
	"context"
	"encoding/json"

	"stafflink/internal/events"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the subset of *kafkago.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, event events.NotificationRequestedEvent) error
}

// ConsumeNotificationRequests delivers notification requests until ctx is
// done. Delivery is best-effort: a failed send is logged and the message is
// still committed so one bad address cannot block the partition.
func ConsumeNotificationRequests(
	ctx context.Context,
	reader MessageReader,
	dispatcher Dispatcher,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.notification")
	log.Info("notification consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("notification consumer stopped")
				return
			}
			log.Error("fetch notification message failed", zap.Error(err))
			continue
		}

		handleNotificationMessage(ctx, reader, dispatcher, msg, log)
	}
}

func handleNotificationMessage(
	ctx context.Context,
	reader MessageReader,
	dispatcher Dispatcher,
	msg kafkago.Message,
	log *zap.Logger,
) {
	var event events.NotificationRequestedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Error("decode notification event failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		_ = reader.CommitMessages(ctx, msg)
		return
	}

	fields := []zap.Field{
		zap.String("channel", event.Channel),
		zap.String("aggregate_type", event.AggregateType),
		zap.String("aggregate_id", event.AggregateID),
		zap.String("request_id", event.RequestID),
	}

	if err := dispatcher.Dispatch(ctx, event); err != nil {
		log.Warn("notification delivery failed", append(fields, zap.Error(err))...)
	} else {
		log.Info("notification delivered", fields...)
	}

	if err := reader.CommitMessages(ctx, msg); err != nil {
		log.Error("commit notification message failed", zap.Error(err))
	}
}
