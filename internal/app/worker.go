package app

import (
	"context"
	"fmt"

	"stafflink/internal/automation"
	"stafflink/internal/bootstrap"
	"stafflink/internal/closure"
	"stafflink/internal/config"
	"stafflink/internal/escalation"
	"stafflink/internal/messaging/kafka"
	"stafflink/internal/messaging/kafka/producer"
	"stafflink/internal/shared/connection"
	"stafflink/internal/shiftstatus"
	"stafflink/internal/timesheetbatch"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// scheduleJobs adds one cron entry per job. SkipIfStillRunning keeps a slow
// run from stacking up inside this process; the runner's lock covers other
// processes.
func scheduleJobs(c *cron.Cron, runner *automation.Runner, specs config.ScheduleConfig, logger *zap.Logger) error {
	for name, spec := range map[string]string{
		shiftstatus.Name:    specs.ShiftStatus,
		escalation.Name:     specs.Escalation,
		closure.Name:        specs.Closure,
		timesheetbatch.Name: specs.Timesheets,
	} {
		if spec == "" || spec == "-" {
			logger.Info("job schedule disabled", zap.String("job", name))
			continue
		}
		if _, err := c.AddFunc(spec, func() {
			// failures are logged and audited by the runner
			_, _ = runner.Run(context.Background(), name, automation.TriggerCron)
		}); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
		}
		logger.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	}
	return nil
}

func RunWorker(cfg *config.Config) error {
	logger := zap.L().Named("app.worker")

	in, err := connectInfra(cfg, logger)
	if err != nil {
		return err
	}
	defer in.Close()

	m := registerModules(cfg, in.sqlDB, in.gormDB, in.redis, logger)

	cl := cronLogger{s: logger.Named("cron").Sugar()}
	scheduler := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if err := scheduleJobs(scheduler, m.runner, cfg.Schedule, logger); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Broker == "" {
		logger.Warn("KAFKA_BROKER not set, outbox relay disabled")
	} else {
		kafkaWriter, err := connection.ConnectKafkaWithRetry(cfg.Kafka.Broker, cfg.Database.MaxRetries)
		if err != nil {
			return err
		}
		defer kafkaWriter.Close()

		go producer.ProcessOutboxEvents(
			ctx,
			kafka.NewOutboxRepository(in.sqlDB),
			kafkaWriter,
			logger,
			cfg.Kafka.OutboxPollInterval,
		)
	}

	scheduler.Start()
	logger.Info("worker started", zap.Strings("jobs", m.runner.Names()))

	sig := bootstrap.WaitForSignal()
	logger.Info("worker shutting down", zap.String("signal", sig.String()))
	cancel()

	// wait for in-flight job runs
	<-scheduler.Stop().Done()
	return nil
}
