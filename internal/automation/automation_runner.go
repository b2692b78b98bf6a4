package automation

import (
	"context"
	"errors"
	"sort"
	"time"

	automationerrors "stafflink/internal/automation/errors"
	"stafflink/internal/bootstrap"
	"stafflink/internal/shared/contextutil"
	"stafflink/internal/shared/runlock"
	"stafflink/internal/shared/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Result struct {
	Job       string
	RunID     string
	Trigger   string
	Skipped   bool
	Report    any
	StartedAt time.Time
	Duration  time.Duration
}

// Summary is the report's own message, if it has one.
func (r Result) Summary() string {
	if s, ok := r.Report.(Summarizer); ok {
		return s.Summary()
	}
	return ""
}

// Runner executes registered jobs for both the HTTP triggers and the cron
// scheduler. Concurrent triggers of one job inside the process share a
// single run; across processes the run lock turns an overlap into a skip.
type Runner struct {
	jobs   map[string]Job
	locker runlock.Locker
	audit  bootstrap.AuditLogger
	group  singleflight.Group
	now    func() time.Time
	logger *zap.Logger
}

func NewRunner(locker runlock.Locker, audit bootstrap.AuditLogger, logger ...*zap.Logger) *Runner {
	l := zap.L().Named("automation.runner")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("automation.runner")
	}
	if locker == nil {
		locker = runlock.Noop{}
	}
	if audit == nil {
		audit = bootstrap.NewStdoutAuditLogger(l)
	}
	return &Runner{
		jobs:   map[string]Job{},
		locker: locker,
		audit:  audit,
		now:    time.Now,
		logger: l,
	}
}

func (r *Runner) Register(jobs ...Job) {
	for _, j := range jobs {
		r.jobs[j.Name()] = j
	}
}

func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Runner) Run(ctx context.Context, name, trigger string) (Result, error) {
	job, ok := r.jobs[name]
	if !ok {
		return Result{}, automationerrors.ErrUnknownJob
	}

	// a dropped trigger connection must not abort a run halfway
	runCtx := context.WithoutCancel(ctx)
	v, err, shared := r.group.Do(name, func() (any, error) {
		return r.execute(runCtx, job, trigger)
	})
	if shared {
		contextutil.GetLogger(ctx, r.logger).Info("joined in-flight job run", zap.String("job", name))
	}
	res, _ := v.(Result)
	return res, err
}

func (r *Runner) execute(ctx context.Context, job Job, trigger string) (Result, error) {
	res := Result{
		Job:       job.Name(),
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: r.now(),
	}

	ctx = contextutil.WithJobRun(ctx, contextutil.JobRun{Job: res.Job, RunID: res.RunID, Trigger: trigger})
	log := contextutil.GetLogger(ctx, r.logger).With(
		zap.String("job", res.Job),
		zap.String("run_id", res.RunID),
		zap.String("trigger", trigger),
	)
	ctx = contextutil.WithLogger(ctx, log)

	ctx, span := telemetry.Tracer().Start(ctx, "automation."+res.Job, trace.WithAttributes(
		attribute.String("job.name", res.Job),
		attribute.String("job.run_id", res.RunID),
		attribute.String("job.trigger", trigger),
	))
	defer span.End()

	release, err := r.locker.Acquire(ctx, res.Job, job.LockTTL())
	switch {
	case errors.Is(err, runlock.ErrHeld):
		res.Skipped = true
		span.SetAttributes(attribute.Bool("job.skipped", true))
		log.Info("job already running elsewhere, skipping")
		r.audit.Log(ctx, bootstrap.AuditLog{
			Action:  "JOB_SKIPPED",
			Message: res.Job + " skipped: run lock held",
			Meta:    map[string]any{"trigger": trigger},
		})
		return res, nil
	case err != nil:
		// the lock is an optimisation; the jobs stay correct without it
		log.Warn("run lock unavailable, continuing unlocked", zap.Error(err))
	default:
		defer release(context.Background())
	}

	log.Info("job started")
	report, err := job.Run(ctx, res.StartedAt)
	res.Duration = time.Since(res.StartedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("job failed", zap.Duration("duration", res.Duration), zap.Error(err))
		r.audit.Log(ctx, bootstrap.AuditLog{
			Action:  "JOB_FAILED",
			Message: res.Job + " failed",
			Meta: map[string]any{
				"trigger":     trigger,
				"duration_ms": res.Duration.Milliseconds(),
				"error":       err.Error(),
			},
		})
		return res, err
	}

	res.Report = report
	log.Info("job finished", zap.Duration("duration", res.Duration))
	r.audit.Log(ctx, bootstrap.AuditLog{
		Action:  "JOB_COMPLETED",
		Message: res.Job + " completed",
		Meta: map[string]any{
			"trigger":     trigger,
			"duration_ms": res.Duration.Milliseconds(),
			"report":      report,
		},
	})
	return res, nil
}
