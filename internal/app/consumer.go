package app

import (
	"context"
	"fmt"

	"stafflink/internal/bootstrap"
	"stafflink/internal/config"
	"stafflink/internal/events"
	"stafflink/internal/messaging/kafka/consumer"
	"stafflink/internal/notification"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func RunConsumer(cfg *config.Config) error {
	logger := zap.L().Named("app.consumer")

	if cfg.Kafka.Broker == "" {
		return fmt.Errorf("KAFKA_BROKER is required")
	}

	dispatcher := notification.NewDispatcher(notification.DispatcherConfig{
		FunctionsURL:   cfg.Notification.FunctionsURL,
		FunctionsToken: cfg.Notification.FunctionsToken,
		Timeout:        cfg.Notification.Timeout,
	}, logger)

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        []string{cfg.Kafka.Broker},
		Topic:          events.NotificationRequestedTopic,
		GroupID:        cfg.Kafka.ConsumerGroup,
		CommitInterval: 0,
		StartOffset:    kafkago.FirstOffset,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.ConsumeNotificationRequests(ctx, reader, dispatcher, logger)
	}()

	sig := bootstrap.WaitForSignal()
	logger.Info("consumer shutting down", zap.String("signal", sig.String()))
	cancel()
	<-done

	return nil
}
