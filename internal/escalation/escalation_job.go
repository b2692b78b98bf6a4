package escalation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"stafflink/internal/agency"
	"stafflink/internal/client"
	"stafflink/internal/notification"
	"stafflink/internal/shared/contextutil"
	"stafflink/internal/shared/jobreport"
	"stafflink/internal/shift"
	"stafflink/internal/workflow"
	workflowerrors "stafflink/internal/workflow/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	Name    = "urgent-shift-escalation"
	LockTTL = 5 * time.Minute

	responseDeadline = time.Hour
)

type Report struct {
	Agencies  int              `json:"agencies"`
	Checked   int              `json:"checked"`
	Escalated int              `json:"escalated"`
	Skipped   int              `json:"skipped"`
	Errors    jobreport.Errors `json:"errors"`
}

// Job raises an unfilled_urgent_shift workflow for every urgent or critical
// shift still open past its agency's threshold.
type Job struct {
	agencies  agency.Repository
	shifts    shift.Repository
	clients   client.Repository
	workflows workflow.Service
	notifier  notification.Notifier
	logger    *zap.Logger
}

func NewJob(
	agencies agency.Repository,
	shifts shift.Repository,
	clients client.Repository,
	workflows workflow.Service,
	notifier notification.Notifier,
	logger ...*zap.Logger,
) *Job {
	l := zap.L().Named("escalation.job")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("escalation.job")
	}
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Job{
		agencies:  agencies,
		shifts:    shifts,
		clients:   clients,
		workflows: workflows,
		notifier:  notifier,
		logger:    l,
	}
}

func (j *Job) Run(ctx context.Context, now time.Time) (*Report, error) {
	log := contextutil.GetLogger(ctx, j.logger)

	agencies, err := j.agencies.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load agencies: %w", err)
	}

	report := &Report{Agencies: len(agencies)}
	for _, a := range agencies {
		if err := j.runAgency(ctx, a, now, report); err != nil {
			log.Error("agency escalation sweep failed",
				zap.String("agency_id", a.ID.String()),
				zap.Error(err),
			)
			report.Errors = append(report.Errors, jobreport.AgencyError(a.ID, err))
		}
	}

	log.Info("urgent shift escalation complete",
		zap.Int("agencies", report.Agencies),
		zap.Int("checked", report.Checked),
		zap.Int("escalated", report.Escalated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// runAgency returns an error only when the agency's shifts cannot be read;
// per-shift failures are recorded on the report.
func (j *Job) runAgency(ctx context.Context, a agency.Agency, now time.Time, report *Report) error {
	log := contextutil.GetLogger(ctx, j.logger)
	threshold := a.Policy().EscalationThreshold

	shifts, err := j.shifts.FindOpenUrgentByAgency(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("load urgent shifts: %w", err)
	}

	var due []shift.Shift
	for _, s := range shifts {
		report.Checked++
		if now.Sub(s.CreatedDate) >= threshold {
			due = append(due, s)
		}
	}
	if len(due) == 0 {
		return nil
	}

	clientIDs := make([]uuid.UUID, 0, len(due))
	for _, s := range due {
		clientIDs = append(clientIDs, s.ClientID)
	}
	// client names only decorate the workflow text; escalate without them
	found, err := j.clients.FindByIDs(ctx, clientIDs)
	if err != nil {
		log.Warn("load clients failed, escalating with generic names",
			zap.String("agency_id", a.ID.String()),
			zap.Error(err),
		)
		found = nil
	}
	clients := client.Index(found)

	for _, s := range due {
		var c *client.Client
		if v, ok := clients[s.ClientID]; ok {
			c = &v
		}

		escalated, err := j.escalate(ctx, a, s, c, now)
		switch {
		case err != nil:
			log.Error("escalate shift failed",
				zap.String("shift_id", s.ID.String()),
				zap.String("agency_id", a.ID.String()),
				zap.Error(err),
			)
			report.Errors = append(report.Errors, jobreport.ShiftError(s.ID, err))
		case escalated:
			report.Escalated++
		default:
			report.Skipped++
		}
	}
	return nil
}

func (j *Job) escalate(ctx context.Context, a agency.Agency, s shift.Shift, c *client.Client, now time.Time) (bool, error) {
	log := contextutil.GetLogger(ctx, j.logger)
	minutes := int(math.Round(now.Sub(s.CreatedDate).Minutes()))

	priority := workflow.PriorityHigh
	if s.Urgency == shift.UrgencyCritical {
		priority = workflow.PriorityCritical
	}

	role := strings.ReplaceAll(s.RoleRequired, "_", " ")
	clientName := client.DisplayName(c, "Client")
	title := fmt.Sprintf("URGENT: %s needed at %s", role, clientName)

	wf, err := j.workflows.Raise(ctx, workflow.Draft{
		AgencyID: a.ID,
		Type:     workflow.TypeUnfilledUrgentShift,
		Priority: priority,
		Title:    title,
		Description: fmt.Sprintf(
			"Shift has been unfilled for %d minutes. Date: %s, Time: %s-%s. IMMEDIATE ACTION REQUIRED.",
			minutes, s.Date.Format(time.DateOnly), s.StartTime, s.EndTime,
		),
		EntityType:      workflow.EntityShift,
		EntityID:        s.ID,
		Deadline:        workflow.DeadlineIn(now, responseDeadline),
		EscalationCount: 1,
	})
	var workflowID string
	switch {
	case errors.Is(err, workflowerrors.ErrOpenWorkflowExists):
		// An earlier run may have raised the workflow and then failed to mark
		// the shift. The CAS below only applies while the shift is still open.
		applied, err := j.markEscalated(ctx, s, minutes, "", now)
		if err != nil {
			return false, err
		}
		if !applied {
			log.Debug("escalation already open, skipping", zap.String("shift_id", s.ID.String()))
			return false, nil
		}
		log.Info("marked shift escalated under existing workflow", zap.String("shift_id", s.ID.String()))
	case err != nil:
		return false, fmt.Errorf("raise escalation workflow: %w", err)
	default:
		workflowID = wf.ID.String()
		applied, err := j.markEscalated(ctx, s, minutes, workflowID, now)
		if err != nil {
			return false, err
		}
		if !applied {
			// filled or cancelled since it was read; the workflow stays for an operator
			log.Warn("shift left open state before escalation was recorded",
				zap.String("shift_id", s.ID.String()),
				zap.String("workflow_id", workflowID),
			)
		}
	}

	if a.Email != "" {
		notification.BestEffort(ctx, j.notifier, log, notification.Request{
			Channel: notification.ChannelEmail,
			To:      a.Email,
			Subject: title,
			Message: fmt.Sprintf(
				"%s shift on %s (%s-%s) at %s has been unfilled for %d minutes and was escalated.",
				role, s.Date.Format(time.DateOnly), s.StartTime, s.EndTime, clientName, minutes,
			),
			AggregateType: workflow.EntityShift,
			AggregateID:   s.ID.String(),
		})
	}

	log.Info("shift escalated",
		zap.String("shift_id", s.ID.String()),
		zap.String("agency_id", a.ID.String()),
		zap.String("workflow_id", workflowID),
		zap.String("priority", priority),
	)
	return true, nil
}

func (j *Job) markEscalated(ctx context.Context, s shift.Shift, minutes int, workflowID string, now time.Time) (bool, error) {
	entry := shift.NewEntry(shift.StatusUnfilledEscalated, shift.MethodEscalation,
		fmt.Sprintf("Escalated after %d minutes unfilled", minutes), now)
	if workflowID != "" {
		entry.Details = map[string]any{"workflow_id": workflowID}
	}

	applied, err := j.shifts.Transition(ctx, shift.StatusTransition{
		ShiftID: s.ID,
		From:    shift.StatusOpen,
		To:      shift.StatusUnfilledEscalated,
		Entry:   entry,
	})
	if err != nil {
		return false, fmt.Errorf("mark shift escalated: %w", err)
	}
	return applied, nil
}
