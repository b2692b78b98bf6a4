package timesheetbatch

import (
	"context"
	"fmt"
	"time"

	"stafflink/internal/agency"
	"stafflink/internal/approval"
	"stafflink/internal/shared/contextutil"
	"stafflink/internal/shared/jobreport"
	"stafflink/internal/shift"
	"stafflink/internal/staff"
	"stafflink/internal/timesheet"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	Name    = "scheduled-timesheet-processor"
	LockTTL = 15 * time.Minute
)

type Report struct {
	Processed int              `json:"processed"`
	Approved  int              `json:"approved"`
	Flagged   int              `json:"flagged"`
	Skipped   int              `json:"skipped"`
	Errors    jobreport.Errors `json:"errors"`

	submitted int
}

func (r *Report) Summary() string {
	if r.submitted == 0 {
		return "No timesheets to process"
	}
	return fmt.Sprintf("Processed %d timesheets", r.Processed)
}

// Job sweeps submitted timesheets through the approval engine. Related
// records are loaded once per run and handed to the engine prefetched.
type Job struct {
	timesheets timesheet.Repository
	agencies   agency.Repository
	staff      staff.Repository
	shifts     shift.Repository
	evaluator  approval.Evaluator
	logger     *zap.Logger
}

func NewJob(
	timesheets timesheet.Repository,
	agencies agency.Repository,
	staffRepo staff.Repository,
	shifts shift.Repository,
	evaluator approval.Evaluator,
	logger ...*zap.Logger,
) *Job {
	l := zap.L().Named("timesheetbatch.job")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("timesheetbatch.job")
	}
	return &Job{
		timesheets: timesheets,
		agencies:   agencies,
		staff:      staffRepo,
		shifts:     shifts,
		evaluator:  evaluator,
		logger:     l,
	}
}

func (j *Job) Run(ctx context.Context, now time.Time) (*Report, error) {
	log := contextutil.GetLogger(ctx, j.logger)

	submitted, err := j.timesheets.FindByStatus(ctx, timesheet.StatusSubmitted)
	if err != nil {
		return nil, fmt.Errorf("load submitted timesheets: %w", err)
	}
	log.Info("submitted timesheets found", zap.Int("count", len(submitted)))

	report := &Report{submitted: len(submitted)}
	if len(submitted) == 0 {
		return report, nil
	}

	agencies, err := j.agencies.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load agencies: %w", err)
	}
	settings := agency.NewSettingsIndex(agencies)

	staffIDs := make([]uuid.UUID, 0, len(submitted))
	shiftIDs := make([]uuid.UUID, 0, len(submitted))
	for _, ts := range submitted {
		staffIDs = append(staffIDs, ts.StaffID)
		shiftIDs = append(shiftIDs, ts.ShiftID)
	}
	members, err := j.staff.FindByIDs(ctx, staffIDs)
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	shifts, err := j.shifts.FindByIDs(ctx, shiftIDs)
	if err != nil {
		return nil, fmt.Errorf("load shifts: %w", err)
	}
	staffByID := staff.Index(members)
	shiftByID := make(map[uuid.UUID]shift.Shift, len(shifts))
	for _, s := range shifts {
		shiftByID[s.ID] = s
	}

	for i := range submitted {
		ts := submitted[i]
		tlog := log.With(zap.String("timesheet_id", ts.ID.String()), zap.String("agency_id", ts.AgencyID.String()))

		if !settings.Policy(ts.AgencyID).AutoTimesheetApproval {
			report.Skipped++
			tlog.Debug("auto-approval disabled for agency, skipping")
			continue
		}

		sh, ok := shiftByID[ts.ShiftID]
		if !ok {
			err := fmt.Errorf("shift %s not found", ts.ShiftID)
			tlog.Warn("timesheet references unknown shift", zap.Error(err))
			report.Errors = append(report.Errors, jobreport.TimesheetError(ts.ID, err))
			continue
		}

		subject := &approval.Subject{Timesheet: &ts, Shift: &sh}
		if m, ok := staffByID[ts.StaffID]; ok {
			subject.Staff = &m
		}
		if a, ok := settings.Get(ts.AgencyID); ok {
			subject.Agency = &a
		}

		decision, err := j.evaluator.Evaluate(ctx, approval.Request{
			TimesheetID: ts.ID,
			Now:         now,
			Subject:     subject,
		})
		if err != nil {
			tlog.Error("timesheet evaluation failed", zap.Error(err))
			report.Errors = append(report.Errors, jobreport.TimesheetError(ts.ID, err))
			continue
		}

		report.Processed++
		if decision.Approved() {
			report.Approved++
		} else {
			report.Flagged++
		}
	}

	log.Info("timesheet batch complete",
		zap.Int("processed", report.Processed),
		zap.Int("approved", report.Approved),
		zap.Int("flagged", report.Flagged),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}
