package contextutil

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	jobRunKey    contextKey = "job_run"
	loggerKey    contextKey = "logger"
)

func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey, rid)
}

func GetRequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey).(string); ok {
		return rid
	}
	return ""
}

// JobRun identifies one invocation of an automation job. Trigger is
// "http" for manual/scheduler calls through the API and "cron" for the
// in-process scheduler.
type JobRun struct {
	Job     string
	RunID   string
	Trigger string
}

func WithJobRun(ctx context.Context, run JobRun) context.Context {
	return context.WithValue(ctx, jobRunKey, run)
}

func GetJobRun(ctx context.Context) (JobRun, bool) {
	run, ok := ctx.Value(jobRunKey).(JobRun)
	return run, ok
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetLogger returns the request/job scoped logger, falling back to
// defaultLogger and finally to a no-op logger so callers never get nil.
func GetLogger(ctx context.Context, defaultLogger *zap.Logger) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
			return l
		}
	}

	if defaultLogger != nil {
		return defaultLogger
	}

	return zap.NewNop()
}

// LogFields collects the tracing identifiers present on ctx.
func LogFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if rid := GetRequestID(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	if run, ok := GetJobRun(ctx); ok {
		fields = append(fields, zap.String("job", run.Job), zap.String("run_id", run.RunID))
	}
	return fields
}
