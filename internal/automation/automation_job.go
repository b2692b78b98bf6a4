package automation

import (
	"context"
	"time"
)

const (
	TriggerHTTP = "http"
	TriggerCron = "cron"
)

// Job is one schedulable automation. Run receives the evaluation time so a
// whole run judges every record against the same clock.
type Job interface {
	Name() string
	LockTTL() time.Duration
	Run(ctx context.Context, now time.Time) (any, error)
}

// Summarizer is implemented by reports that carry their own response message.
type Summarizer interface {
	Summary() string
}

type funcJob[R any] struct {
	name string
	ttl  time.Duration
	run  func(context.Context, time.Time) (R, error)
}

// NewJob adapts a typed Run method, e.g.
// NewJob(shiftstatus.Name, shiftstatus.LockTTL, statusJob.Run).
func NewJob[R any](name string, ttl time.Duration, run func(context.Context, time.Time) (R, error)) Job {
	return &funcJob[R]{name: name, ttl: ttl, run: run}
}

func (j *funcJob[R]) Name() string           { return j.name }
func (j *funcJob[R]) LockTTL() time.Duration { return j.ttl }

func (j *funcJob[R]) Run(ctx context.Context, now time.Time) (any, error) {
	report, err := j.run(ctx, now)
	if err != nil {
		return nil, err
	}
	return report, nil
}
