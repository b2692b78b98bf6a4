package shiftstatus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stafflink/internal/agency"
	"stafflink/internal/shared/contextutil"
	"stafflink/internal/shared/jobreport"
	"stafflink/internal/shift"
	"stafflink/internal/workflow"
	workflowerrors "stafflink/internal/workflow/errors"

	"go.uber.org/zap"
)

const (
	Name    = "shift-status-automation"
	LockTTL = 5 * time.Minute

	verifyDeadline     = 24 * time.Hour
	pastShiftDeadline  = 48 * time.Hour
	noteAutoStarted    = "Auto-started at scheduled start time"
	noteAutoEnded      = "Auto-ended at scheduled end time - awaiting admin verification"
	notePastShiftClose = "Scheduled end passed before the shift was started - awaiting admin closure"
)

type Report struct {
	ShiftsStarted    int              `json:"shifts_started"`
	ShiftsEnded      int              `json:"shifts_ended"`
	PastShiftsClosed int              `json:"past_shifts_closed"`
	WorkflowsCreated int              `json:"workflows_created"`
	Errors           jobreport.Errors `json:"errors"`
}

// Job moves confirmed and in-progress shifts along their schedule. It only
// ever moves a shift forward and every write is conditioned on the status it
// read, so overlapping runs cannot apply the same step twice.
type Job struct {
	agencies  agency.Repository
	shifts    shift.Repository
	workflows workflow.Service
	loc       *time.Location
	logger    *zap.Logger
}

func NewJob(
	agencies agency.Repository,
	shifts shift.Repository,
	workflows workflow.Service,
	loc *time.Location,
	logger ...*zap.Logger,
) *Job {
	l := zap.L().Named("shiftstatus.job")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("shiftstatus.job")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Job{agencies: agencies, shifts: shifts, workflows: workflows, loc: loc, logger: l}
}

func (j *Job) Run(ctx context.Context, now time.Time) (*Report, error) {
	log := contextutil.GetLogger(ctx, j.logger)

	agencies, err := j.agencies.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load agencies: %w", err)
	}
	settings := agency.NewSettingsIndex(agencies)

	active, err := j.shifts.FindByStatuses(ctx, shift.StatusConfirmed, shift.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("load active shifts: %w", err)
	}

	log.Info("processing active shifts", zap.Int("count", len(active)))

	report := &Report{}
	for _, s := range active {
		if err := j.process(ctx, s, settings.Policy(s.AgencyID), now, report); err != nil {
			log.Error("shift status update failed",
				zap.String("shift_id", s.ID.String()),
				zap.String("agency_id", s.AgencyID.String()),
				zap.Error(err),
			)
			report.Errors = append(report.Errors, jobreport.ShiftError(s.ID, err))
		}
	}

	log.Info("shift status automation complete",
		zap.Int("shifts_started", report.ShiftsStarted),
		zap.Int("shifts_ended", report.ShiftsEnded),
		zap.Int("past_shifts_closed", report.PastShiftsClosed),
		zap.Int("workflows_created", report.WorkflowsCreated),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func (j *Job) process(ctx context.Context, s shift.Shift, policy agency.Policy, now time.Time, report *Report) error {
	start, end, err := s.Window(j.loc)
	if err != nil {
		return err
	}

	switch {
	case s.Status == shift.StatusConfirmed && !now.Before(end):
		applied, err := j.shifts.Transition(ctx, shift.StatusTransition{
			ShiftID: s.ID,
			From:    shift.StatusConfirmed,
			To:      shift.StatusAwaitingAdminClosure,
			Entry:   shift.NewEntry(shift.StatusAwaitingAdminClosure, shift.MethodAutomated, notePastShiftClose, now),
		})
		if err != nil || !applied {
			return err
		}
		report.PastShiftsClosed++
		// not retried either; see the in-progress branch
		if !policy.VerifyShiftCompletion {
			return nil
		}
		return j.raise(ctx, report, workflow.Draft{
			AgencyID:    s.AgencyID,
			Type:        workflow.TypeShiftCompletionVerification,
			Priority:    workflow.PriorityMedium,
			Title:       "Past Shift Needs Closure - " + s.ShortID(),
			Description: fmt.Sprintf("Shift from %s needs admin review. Was it worked? No-show? Cancelled?", s.Date.Format(time.DateOnly)),
			EntityType:  workflow.EntityShift,
			EntityID:    s.ID,
			Deadline:    workflow.DeadlineIn(now, pastShiftDeadline),
		})

	case s.Status == shift.StatusConfirmed && !now.Before(start):
		applied, err := j.shifts.Transition(ctx, shift.StatusTransition{
			ShiftID:   s.ID,
			From:      shift.StatusConfirmed,
			To:        shift.StatusInProgress,
			Entry:     shift.NewEntry(shift.StatusInProgress, shift.MethodAutomated, noteAutoStarted, now),
			StartedAt: &now,
		})
		if err == nil && applied {
			report.ShiftsStarted++
		}
		return err

	case s.Status == shift.StatusInProgress && !now.Before(end):
		applied, err := j.shifts.Transition(ctx, shift.StatusTransition{
			ShiftID: s.ID,
			From:    shift.StatusInProgress,
			To:      shift.StatusAwaitingAdminClosure,
			Entry:   shift.NewEntry(shift.StatusAwaitingAdminClosure, shift.MethodAutomated, noteAutoEnded, now),
			EndedAt: &now,
		})
		if err != nil || !applied {
			return err
		}
		report.ShiftsEnded++
		// Only the run whose transition applied gets here, so a failed raise
		// is not retried. The closure job's stuck-shift check picks it up.
		if !policy.VerifyShiftCompletion {
			return nil
		}
		return j.raise(ctx, report, workflow.Draft{
			AgencyID:    s.AgencyID,
			Type:        workflow.TypeShiftCompletionVerification,
			Priority:    workflow.PriorityMedium,
			Title:       "Verify Shift Completion - " + s.ShortID(),
			Description: fmt.Sprintf("Shift ended at %s. Please verify timesheet and confirm shift was worked as planned.", s.EndTime),
			EntityType:  workflow.EntityShift,
			EntityID:    s.ID,
			Deadline:    workflow.DeadlineIn(now, verifyDeadline),
		})
	}

	return nil
}

func (j *Job) raise(ctx context.Context, report *Report, d workflow.Draft) error {
	_, err := j.workflows.Raise(ctx, d)
	if errors.Is(err, workflowerrors.ErrOpenWorkflowExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("raise verification workflow: %w", err)
	}
	report.WorkflowsCreated++
	return nil
}
