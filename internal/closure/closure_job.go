package closure

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"stafflink/internal/client"
	"stafflink/internal/shared/contextutil"
	"stafflink/internal/shared/jobreport"
	"stafflink/internal/shift"
	"stafflink/internal/staff"
	"stafflink/internal/workflow"
	workflowerrors "stafflink/internal/workflow/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	Name    = "daily-shift-closure"
	LockTTL = time.Hour

	// strict thresholds: an end exactly this long ago does not qualify
	stuckAfter            = 2 * time.Hour
	missingTimesheetAfter = 24 * time.Hour
	criticalAfterHours    = 48
	closureDeadline       = 24 * time.Hour
	maxListedIssues       = 10
)

var stuckStatuses = map[string]bool{
	shift.StatusInProgress:           true,
	shift.StatusConfirmed:            true,
	shift.StatusAwaitingAdminClosure: true,
}

type Report struct {
	WorkflowsCreated int              `json:"workflows_created"`
	IssuesFound      int              `json:"issues_found"`
	Issues           []string         `json:"issues"`
	Skipped          int              `json:"skipped"`
	Errors           jobreport.Errors `json:"errors"`
}

func (r *Report) Summary() string {
	return fmt.Sprintf("Created %d AdminWorkflows", r.WorkflowsCreated)
}

func (r *Report) addIssue(text string) {
	r.IssuesFound++
	if len(r.Issues) < maxListedIssues {
		r.Issues = append(r.Issues, text)
	}
}

// Job is the daily safety net for shifts that ended without being closed and
// for completed shifts that never got a timesheet.
type Job struct {
	shifts    shift.Repository
	clients   client.Repository
	staff     staff.Repository
	workflows workflow.Service
	loc       *time.Location
	logger    *zap.Logger
}

func NewJob(
	shifts shift.Repository,
	clients client.Repository,
	staffRepo staff.Repository,
	workflows workflow.Service,
	loc *time.Location,
	logger ...*zap.Logger,
) *Job {
	l := zap.L().Named("closure.job")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("closure.job")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Job{shifts: shifts, clients: clients, staff: staffRepo, workflows: workflows, loc: loc, logger: l}
}

type candidate struct {
	shift shift.Shift
	check string
}

const (
	checkStuck            = "stuck"
	checkMissingTimesheet = "missing_timesheet"
)

func (j *Job) Run(ctx context.Context, now time.Time) (*Report, error) {
	log := contextutil.GetLogger(ctx, j.logger)

	all, err := j.shifts.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load shifts: %w", err)
	}

	var candidates []candidate
	for _, s := range all {
		if check := j.classify(s, now); check != "" {
			candidates = append(candidates, candidate{shift: s, check: check})
		}
	}

	log.Info("closure candidates found",
		zap.Int("shifts", len(all)),
		zap.Int("candidates", len(candidates)),
	)

	report := &Report{Issues: []string{}}
	if len(candidates) == 0 {
		return report, nil
	}

	clientIDs := make([]uuid.UUID, 0, len(candidates))
	staffIDs := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		clientIDs = append(clientIDs, c.shift.ClientID)
		if c.shift.AssignedStaffID != nil {
			staffIDs = append(staffIDs, *c.shift.AssignedStaffID)
		}
	}
	foundClients, err := j.clients.FindByIDs(ctx, clientIDs)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	foundStaff, err := j.staff.FindByIDs(ctx, staffIDs)
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	clients := client.Index(foundClients)
	members := staff.Index(foundStaff)

	for _, c := range candidates {
		if err := j.handle(ctx, c, clients, members, now, report); err != nil {
			log.Error("closure check failed",
				zap.String("shift_id", c.shift.ID.String()),
				zap.String("check", c.check),
				zap.Error(err),
			)
			report.Errors = append(report.Errors, jobreport.ShiftError(c.shift.ID, err))
		}
	}

	log.Info("daily shift closure complete",
		zap.Int("workflows_created", report.WorkflowsCreated),
		zap.Int("issues_found", report.IssuesFound),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// classify returns which check s fails at now, or "" when it is fine.
// Shifts without a usable schedule are never candidates.
func (j *Job) classify(s shift.Shift, now time.Time) string {
	_, end, err := s.Window(j.loc)
	if err != nil {
		return ""
	}
	overdue := now.Sub(end)

	switch {
	case overdue > stuckAfter && stuckStatuses[s.Status]:
		return checkStuck
	case overdue > missingTimesheetAfter &&
		s.Status == shift.StatusCompleted &&
		!s.TimesheetReceived &&
		s.AssignedStaffID != nil:
		return checkMissingTimesheet
	}
	return ""
}

func (j *Job) handle(
	ctx context.Context,
	c candidate,
	clients map[uuid.UUID]client.Client,
	members map[uuid.UUID]staff.Staff,
	now time.Time,
	report *Report,
) error {
	// another job may have moved the shift since the bulk read
	fresh, err := j.shifts.FindByID(ctx, c.shift.ID)
	if err != nil {
		return fmt.Errorf("reload shift: %w", err)
	}
	if j.classify(*fresh, now) != c.check {
		report.Skipped++
		return nil
	}
	s := *fresh

	var cl *client.Client
	if v, ok := clients[s.ClientID]; ok {
		cl = &v
	}
	var member *staff.Staff
	if s.AssignedStaffID != nil {
		if v, ok := members[*s.AssignedStaffID]; ok {
			member = &v
		}
	}

	var (
		draft workflow.Draft
		issue string
	)
	switch c.check {
	case checkStuck:
		draft, issue = j.stuckDraft(s, cl, member, now)
	case checkMissingTimesheet:
		draft, issue = missingTimesheetDraft(s, cl, member)
	}

	report.addIssue(issue)

	_, err = j.workflows.Raise(ctx, draft)
	if errors.Is(err, workflowerrors.ErrOpenWorkflowExists) {
		report.Skipped++
		return nil
	}
	if err != nil {
		return fmt.Errorf("raise %s workflow: %w", draft.Type, err)
	}
	report.WorkflowsCreated++
	return nil
}

func (j *Job) stuckDraft(s shift.Shift, cl *client.Client, member *staff.Staff, now time.Time) (workflow.Draft, string) {
	_, end, _ := s.Window(j.loc)
	hoursAgo := int(math.Round(now.Sub(end).Hours()))

	priority := workflow.PriorityHigh
	if hoursAgo > criticalAfterHours {
		priority = workflow.PriorityCritical
	}

	location := "Not specified"
	if s.WorkLocationWithinSite != nil && *s.WorkLocationWithinSite != "" {
		location = *s.WorkLocationWithinSite
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CRITICAL: Shift ended %dh ago but not marked as completed.\n\n", hoursAgo)
	b.WriteString("SHIFT DETAILS:\n")
	fmt.Fprintf(&b, "Client: %s\n", client.DisplayName(cl, "Unknown Client"))
	fmt.Fprintf(&b, "Staff: %s\n", staffName(member, "Unassigned"))
	fmt.Fprintf(&b, "Date: %s\n", s.Date.Format(time.DateOnly))
	fmt.Fprintf(&b, "Time: %s-%s\n", s.StartTime, s.EndTime)
	fmt.Fprintf(&b, "Location: %s\n", location)
	fmt.Fprintf(&b, "Status: %s\n\n", s.Status)
	b.WriteString("ACTION REQUIRED:\n")
	b.WriteString("1. Contact staff/client to confirm shift was worked\n")
	b.WriteString("2. Mark shift as completed OR cancelled/no-show\n")
	b.WriteString("3. Prevent invoicing unverified shift\n\n")
	fmt.Fprintf(&b, "Shift ID: %s", s.ID)

	return workflow.Draft{
		AgencyID:    s.AgencyID,
		Type:        workflow.TypeOther,
		Priority:    priority,
		Title:       "Shift Closure Urgent - " + client.DisplayName(cl, "Unknown Client"),
		Description: b.String(),
		EntityType:  workflow.EntityShift,
		EntityID:    s.ID,
		Deadline:    workflow.DeadlineIn(now, closureDeadline),
	}, fmt.Sprintf("Shift %s - %dh overdue", s.ID.String()[:8], hoursAgo)
}

func missingTimesheetDraft(s shift.Shift, cl *client.Client, member *staff.Staff) (workflow.Draft, string) {
	name := staffName(member, "Unknown Staff")

	var b strings.Builder
	b.WriteString("Shift marked completed but no timesheet received.\n\n")
	b.WriteString("SHIFT DETAILS:\n")
	fmt.Fprintf(&b, "Client: %s\n", client.DisplayName(cl, "Unknown Client"))
	fmt.Fprintf(&b, "Staff: %s\n", name)
	fmt.Fprintf(&b, "Date: %s\n", s.Date.Format(time.DateOnly))
	fmt.Fprintf(&b, "Time: %s-%s\n\n", s.StartTime, s.EndTime)
	b.WriteString("ACTION:\n")
	b.WriteString("1. Contact staff to upload timesheet\n")
	b.WriteString("2. Create timesheet manually if needed\n")
	b.WriteString("3. Do NOT invoice without verified hours")

	return workflow.Draft{
		AgencyID:    s.AgencyID,
		Type:        workflow.TypeTimesheetDiscrepancy,
		Priority:    workflow.PriorityHigh,
		Title:       "Missing Timesheet - " + name,
		Description: b.String(),
		EntityType:  workflow.EntityShift,
		EntityID:    s.ID,
	}, fmt.Sprintf("Missing timesheet - Shift %s", s.ID.String()[:8])
}

func staffName(m *staff.Staff, fallback string) string {
	if m == nil || m.FullName() == "" {
		return fallback
	}
	return m.FullName()
}
