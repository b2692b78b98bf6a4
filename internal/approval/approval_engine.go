package approval

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"stafflink/internal/agency"
	"stafflink/internal/client"
	"stafflink/internal/notification"
	"stafflink/internal/shared/contextutil"
	"stafflink/internal/shift"
	shifterrors "stafflink/internal/shift/errors"
	"stafflink/internal/staff"
	"stafflink/internal/timesheet"
	"stafflink/internal/workflow"
	workflowerrors "stafflink/internal/workflow/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// worked hours may differ from scheduled hours by this much
	hoursTolerance     = 0.25
	overtimeAlertAbove = 1.0

	approvalNote = "[AUTO-APPROVED: All validation criteria met]"
)

//go:generate mockgen -source=approval_engine.go -destination=mock/approval_engine_mock.go -package=mock
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (Decision, error)
}

type Dependencies struct {
	Timesheets timesheet.Repository
	Shifts     shift.Repository
	Staff      staff.Repository
	Agencies   agency.Repository
	Clients    client.Repository
	Workflows  workflow.Service
	Notifier   notification.Notifier
}

type EngineConfig struct {
	AdminAlertEmail  string
	ApprovalLinkBase string
	Location         *time.Location
}

type engine struct {
	deps   Dependencies
	cfg    EngineConfig
	logger *zap.Logger
}

func NewEngine(deps Dependencies, cfg EngineConfig, logger ...*zap.Logger) Evaluator {
	l := zap.L().Named("approval.engine")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("approval.engine")
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.Nop{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &engine{deps: deps, cfg: cfg, logger: l}
}

func (e *engine) Evaluate(ctx context.Context, req Request) (Decision, error) {
	log := contextutil.GetLogger(ctx, e.logger).With(zap.String("timesheet_id", req.TimesheetID.String()))
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	subject, err := e.load(ctx, req)
	if err != nil {
		return Decision{}, err
	}
	ts := subject.Timesheet

	if ts.Terminal() {
		return Decision{
			Success:     false,
			Reason:      ReasonAlreadyProcessed,
			Message:     "Timesheet already approved or rejected",
			TimesheetID: ts.ID.String(),
		}, nil
	}

	policy := agency.DefaultPolicy()
	if subject.Agency != nil {
		policy = subject.Agency.Policy()
	}
	if !policy.AutoTimesheetApproval && !req.ManualTrigger {
		return Decision{
			Success:     false,
			Reason:      ReasonDisabled,
			Message:     "Auto-approval disabled for this agency",
			TimesheetID: ts.ID.String(),
		}, nil
	}

	results, issues, overtime, err := e.validate(ctx, subject)
	if err != nil {
		return Decision{}, err
	}

	if results.AllChecksPassed {
		return e.approve(ctx, log, subject, results, now)
	}
	return e.flag(ctx, log, subject, results, issues, overtime, now)
}

// load fills in whatever the caller did not prefetch. Only a missing
// timesheet is an error; absent related records show up as issues.
func (e *engine) load(ctx context.Context, req Request) (Subject, error) {
	var s Subject
	if req.Subject != nil {
		s = *req.Subject
	}

	if s.Timesheet == nil {
		ts, err := e.deps.Timesheets.FindByID(ctx, req.TimesheetID)
		if err != nil {
			return s, err
		}
		s.Timesheet = ts
	}
	ts := s.Timesheet

	if s.Agency == nil {
		a, err := e.deps.Agencies.FindByID(ctx, ts.AgencyID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return s, fmt.Errorf("load agency: %w", err)
		default:
			s.Agency = a
		}
	}

	if s.Staff == nil {
		m, err := e.deps.Staff.FindByID(ctx, ts.StaffID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return s, fmt.Errorf("load staff: %w", err)
		default:
			s.Staff = m
		}
	}

	if s.Shift == nil && ts.ShiftID != uuid.Nil {
		sh, err := e.deps.Shifts.FindByID(ctx, ts.ShiftID)
		switch {
		case errors.Is(err, shifterrors.ErrShiftNotFound):
		case err != nil:
			return s, fmt.Errorf("load shift: %w", err)
		default:
			s.Shift = sh
		}
	}
	return s, nil
}

type overtimeInfo struct {
	worked, scheduled, diff float64
}

func (e *engine) validate(ctx context.Context, s Subject) (ValidationResults, []Issue, *overtimeInfo, error) {
	var (
		results  ValidationResults
		issues   []Issue
		overtime *overtimeInfo
	)
	ts := s.Timesheet

	switch {
	case ts.HasStaffSignature() && ts.HasClientSignature():
		results.SignaturesPresent = true
	case !ts.HasStaffSignature():
		issues = append(issues, Issue{Type: IssueMissingSignature, Severity: SeverityHigh, Message: "Missing staff signature"})
	default:
		issues = append(issues, Issue{Type: IssueMissingSignature, Severity: SeverityHigh, Message: "Missing client signature"})
	}

	// no GPS consent means nothing to check
	if s.Staff == nil || !s.Staff.GPSConsent {
		results.GPSValidated = true
	} else if ts.GeofenceValidated == nil {
		issues = append(issues, Issue{Type: IssueMissingGPS, Severity: SeverityMedium, Message: "GPS validation not performed"})
	} else if *ts.GeofenceValidated {
		results.GPSValidated = true
	} else {
		var distance float64
		if ts.GeofenceDistanceMeters != nil {
			distance = *ts.GeofenceDistanceMeters
		}
		issues = append(issues, Issue{
			Type:     IssueGeofenceViolation,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("Clock-in %dm outside geofence", int(math.Round(distance))),
		})
	}

	var (
		scheduled   float64
		scheduleErr error
	)
	if s.Shift != nil {
		scheduled, scheduleErr = s.Shift.DurationHours(e.cfg.Location)
	}
	if s.Shift == nil || scheduleErr != nil || ts.TotalHours == nil || *ts.TotalHours <= 0 {
		issues = append(issues, Issue{Type: IssueMissingData, Severity: SeverityHigh, Message: "Missing shift reference or total hours"})
	} else {
		worked := *ts.TotalHours
		diff := math.Abs(worked - scheduled)
		if diff <= hoursTolerance {
			results.HoursAcceptable = true
		} else {
			severity := SeverityMedium
			if diff > overtimeAlertAbove {
				severity = SeverityHigh
				if worked > scheduled {
					overtime = &overtimeInfo{worked: worked, scheduled: scheduled, diff: diff}
				}
			}
			issues = append(issues, Issue{
				Type:     IssueHoursMismatch,
				Severity: severity,
				Message:  fmt.Sprintf("Worked %sh, scheduled %sh (+%.1fh difference)", formatHours(worked), formatHours(scheduled), diff),
			})
		}
	}

	open, err := e.deps.Workflows.CountOpenForEntity(ctx, workflow.EntityTimesheet, ts.ID)
	if err != nil {
		return results, nil, nil, fmt.Errorf("count open workflows: %w", err)
	}
	if open == 0 {
		results.NoDisputes = true
	} else {
		issues = append(issues, Issue{
			Type:     IssueExistingDispute,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%d pending workflow(s) related to this timesheet", open),
		})
	}

	results.AllChecksPassed = results.SignaturesPresent && results.GPSValidated && results.HoursAcceptable && results.NoDisputes
	return results, issues, overtime, nil
}

func (e *engine) approve(ctx context.Context, log *zap.Logger, s Subject, results ValidationResults, now time.Time) (Decision, error) {
	ts := s.Timesheet
	approvedAt := now.UTC()

	applied, err := e.deps.Timesheets.UpdateStatus(ctx, timesheet.StatusUpdate{
		TimesheetID:      ts.ID,
		From:             ts.Status,
		To:               timesheet.StatusApproved,
		ClientApprovedAt: &approvedAt,
		Note:             approvalNote,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("approve timesheet: %w", err)
	}
	if !applied {
		return alreadyProcessed(ts.ID), nil
	}

	entry := shift.NewEntry(shift.StateTimesheetAutoApproved, shift.MethodAutoApproval, "", now)
	entry.Details = map[string]any{
		"timesheet_id":       ts.ID.String(),
		"confidence_score":   100,
		"factors":            []string{"signatures_verified", "gps_validated", "hours_within_threshold"},
		"gps_validated":      results.GPSValidated,
		"signatures_present": results.SignaturesPresent,
	}
	if err := e.deps.Shifts.MarkTimesheetReceived(ctx, s.Shift.ID, entry, approvedAt); err != nil {
		// the approval stands; the closure sweep will surface the shift if needed
		log.Warn("mark timesheet received failed", zap.String("shift_id", s.Shift.ID.String()), zap.Error(err))
	}

	if s.Staff != nil && s.Staff.Email != "" {
		clientName := client.DisplayName(e.client(ctx, s), "client")
		notification.BestEffort(ctx, e.deps.Notifier, log, notification.Request{
			Channel: notification.ChannelEmail,
			To:      s.Staff.Email,
			Subject: "Timesheet Approved",
			Message: fmt.Sprintf(
				"Good news %s! Your timesheet for %s on %s has been automatically approved. Payment will be processed in the next payroll cycle.",
				s.Staff.FirstName, clientName, s.Shift.Date.Format(time.DateOnly),
			),
			AggregateType: workflow.EntityTimesheet,
			AggregateID:   ts.ID.String(),
		})
	}

	log.Info("timesheet auto-approved", zap.String("shift_id", s.Shift.ID.String()))
	return Decision{
		Success:           true,
		Action:            ActionApproved,
		Reason:            ReasonAutoApproved,
		Message:           "Timesheet auto-approved - all criteria met",
		TimesheetID:       ts.ID.String(),
		ValidationResults: &results,
	}, nil
}

func (e *engine) flag(
	ctx context.Context,
	log *zap.Logger,
	s Subject,
	results ValidationResults,
	issues []Issue,
	overtime *overtimeInfo,
	now time.Time,
) (Decision, error) {
	ts := s.Timesheet

	title := "Timesheet Pending Review"
	priority := workflow.PriorityMedium
	if hasSevere(issues) {
		title = fmt.Sprintf("Timesheet Review Required - %d issue(s)", len(issues))
		priority = workflow.PriorityHigh
	}
	lines := make([]string, 0, len(issues))
	for _, i := range issues {
		lines = append(lines, i.Type+": "+i.Message)
	}

	// raise before flagging so a failed insert leaves the timesheet for the next sweep
	_, err := e.deps.Workflows.Raise(ctx, workflow.Draft{
		AgencyID:    ts.AgencyID,
		Type:        workflow.TypeTimesheetDiscrepancy,
		Priority:    priority,
		Title:       title,
		Description: strings.Join(lines, "\n"),
		EntityType:  workflow.EntityTimesheet,
		EntityID:    ts.ID,
	})
	if err != nil && !errors.Is(err, workflowerrors.ErrOpenWorkflowExists) {
		return Decision{}, fmt.Errorf("raise review workflow: %w", err)
	}

	if ts.Status == timesheet.StatusSubmitted {
		applied, err := e.deps.Timesheets.UpdateStatus(ctx, timesheet.StatusUpdate{
			TimesheetID: ts.ID,
			From:        timesheet.StatusSubmitted,
			To:          timesheet.StatusFlagged,
		})
		if err != nil {
			return Decision{}, fmt.Errorf("flag timesheet: %w", err)
		}
		if !applied {
			return alreadyProcessed(ts.ID), nil
		}
	}

	if s.Shift != nil {
		e.requestClientApproval(ctx, log, s)
	}
	if overtime != nil && e.cfg.AdminAlertEmail != "" {
		e.alertOvertime(ctx, log, s, *overtime)
	}

	log.Info("timesheet flagged for review",
		zap.Int("issues", len(issues)),
		zap.String("priority", priority),
	)
	return Decision{
		Success:           false,
		Action:            ActionFlaggedForReview,
		Reason:            ReasonValidationFailed,
		Message:           fmt.Sprintf("Timesheet flagged for manual review (%d %s)", len(issues), plural(len(issues), "issue")),
		TimesheetID:       ts.ID.String(),
		ValidationResults: &results,
		Issues:            issues,
	}, nil
}

func (e *engine) requestClientApproval(ctx context.Context, log *zap.Logger, s Subject) {
	c := e.client(ctx, s)
	if c == nil || c.ContactEmail == "" {
		return
	}
	ts := s.Timesheet

	firstName := "A staff member"
	if s.Staff != nil && s.Staff.FirstName != "" {
		firstName = s.Staff.FirstName
	}
	contact := c.ContactName
	if contact == "" {
		contact = "Team"
	}
	scheduled, _ := s.Shift.DurationHours(e.cfg.Location)

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(contact))
	fmt.Fprintf(&b, "<p>%s has completed their shift and the timesheet is now ready for your approval.</p>", html.EscapeString(firstName))
	fmt.Fprintf(&b, "<p><strong>Scheduled:</strong> %s - %s (%sh)</p>", s.Shift.StartTime, s.Shift.EndTime, formatHours(scheduled))
	fmt.Fprintf(&b, "<p><strong>Actual:</strong> %s - %s (%sh)</p>",
		orNA(ts.ActualStartTime), orNA(ts.ActualEndTime), formatOptionalHours(ts.TotalHours))
	if base := strings.TrimRight(e.cfg.ApprovalLinkBase, "/"); base != "" {
		fmt.Fprintf(&b, `<p><a href="%s/approve/timesheet/%s">Approve Timesheet in 60 Seconds</a></p>`, html.EscapeString(base), ts.ID)
	}
	b.WriteString("<p>Approving promptly helps ensure staff are paid on time.</p>")

	notification.BestEffort(ctx, e.deps.Notifier, log, notification.Request{
		Channel:       notification.ChannelEmail,
		To:            c.ContactEmail,
		Subject:       fmt.Sprintf("Action Required: Please Approve Timesheet for %s's Shift", firstName),
		HTML:          b.String(),
		AggregateType: workflow.EntityTimesheet,
		AggregateID:   ts.ID.String(),
	})
}

func (e *engine) alertOvertime(ctx context.Context, log *zap.Logger, s Subject, o overtimeInfo) {
	name, first := "Unknown staff", "Staff"
	if s.Staff != nil {
		name, first = s.Staff.FullName(), s.Staff.FirstName
	}
	notification.BestEffort(ctx, e.deps.Notifier, log, notification.Request{
		Channel: notification.ChannelEmail,
		To:      e.cfg.AdminAlertEmail,
		Subject: fmt.Sprintf("Overtime Alert: %s submitted %.1f extra hours", first, o.diff),
		Message: fmt.Sprintf(
			"Staff: %s\nShift date: %s\nScheduled hours: %sh\nWorked hours: %sh\nOvertime: %.2fh\n\nThis timesheet has been flagged for manual review.",
			name, s.Shift.Date.Format(time.DateOnly), formatHours(o.scheduled), formatHours(o.worked), o.diff,
		),
		AggregateType: workflow.EntityTimesheet,
		AggregateID:   s.Timesheet.ID.String(),
	})
}

// client resolves the timesheet's client, falling back to the shift's.
// Lookup failures only degrade notification text.
func (e *engine) client(ctx context.Context, s Subject) *client.Client {
	id := uuid.Nil
	if s.Timesheet.ClientID != nil {
		id = *s.Timesheet.ClientID
	} else if s.Shift != nil {
		id = s.Shift.ClientID
	}
	if id == uuid.Nil {
		return nil
	}
	c, err := e.deps.Clients.FindByID(ctx, id)
	if err != nil {
		return nil
	}
	return c
}

func alreadyProcessed(id uuid.UUID) Decision {
	return Decision{
		Success:     false,
		Reason:      ReasonAlreadyProcessed,
		Message:     "Timesheet was processed concurrently",
		TimesheetID: id.String(),
	}
}

func formatHours(h float64) string {
	return strconv.FormatFloat(math.Round(h*100)/100, 'f', -1, 64)
}

func formatOptionalHours(h *float64) string {
	if h == nil {
		return "N/A"
	}
	return formatHours(*h)
}

func orNA(v *string) string {
	if v == nil || *v == "" {
		return "N/A"
	}
	return html.EscapeString(*v)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
