package approval_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"stafflink/internal/agency"
	"stafflink/internal/approval"
	"stafflink/internal/client"
	"stafflink/internal/notification"
	"stafflink/internal/shared/testutil/memstore"
	"stafflink/internal/shift"
	"stafflink/internal/staff"
	"stafflink/internal/timesheet"
	timesheeterrors "stafflink/internal/timesheet/errors"
	"stafflink/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Request
}

func (n *recordingNotifier) Notify(_ context.Context, req notification.Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, req)
	return nil
}

func (n *recordingNotifier) to(addr string) []notification.Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.Request
	for _, r := range n.sent {
		if r.To == addr {
			out = append(out, r)
		}
	}
	return out
}

type fixture struct {
	store    *memstore.Store
	engine   approval.Evaluator
	notifier *recordingNotifier
	agency   agency.Agency
	shift    shift.Shift
	member   staff.Staff
	client   client.Client
}

func ptr[T any](v T) *T { return &v }

func setup(t *testing.T, settings agency.Settings) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{store: store, notifier: &recordingNotifier{}}

	f.agency = agency.Agency{ID: uuid.New(), Name: "Northgate Care", Settings: settings}
	f.client = client.Client{ID: uuid.New(), AgencyID: f.agency.ID, Name: "Oakview House", ContactName: "Priya", ContactEmail: "priya@oakview.test"}
	f.member = staff.Staff{ID: uuid.New(), AgencyID: f.agency.ID, FirstName: "Jane", LastName: "Doe", Email: "jane@staff.test", GPSConsent: true}
	f.shift = shift.Shift{
		ID:              uuid.New(),
		AgencyID:        f.agency.ID,
		ClientID:        f.client.ID,
		RoleRequired:    "nurse",
		Date:            time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:       "08:00",
		EndTime:         "16:00",
		Status:          shift.StatusCompleted,
		AssignedStaffID: &f.member.ID,
	}
	store.PutAgency(f.agency)
	store.PutClient(f.client)
	store.PutStaff(f.member)
	store.PutShift(f.shift)

	f.engine = approval.NewEngine(approval.Dependencies{
		Timesheets: store.Timesheets(),
		Shifts:     store.Shifts(),
		Staff:      store.Staff(),
		Agencies:   store.Agencies(),
		Clients:    store.Clients(),
		Workflows:  workflow.NewService(store.WorkflowRepo(), zap.NewNop()),
		Notifier:   f.notifier,
	}, approval.EngineConfig{
		AdminAlertEmail:  "payroll@northgate.test",
		ApprovalLinkBase: "https://app.stafflink.test/",
	}, zap.NewNop())
	return f
}

// cleanTimesheet passes every check.
func (f *fixture) cleanTimesheet(mutate ...func(*timesheet.Timesheet)) timesheet.Timesheet {
	ts := timesheet.Timesheet{
		ID:                uuid.New(),
		ShiftID:           f.shift.ID,
		StaffID:           f.member.ID,
		AgencyID:          f.agency.ID,
		ClientID:          &f.client.ID,
		Status:            timesheet.StatusSubmitted,
		TotalHours:        ptr(8.0),
		GeofenceValidated: ptr(true),
		StaffSignature:    ptr("sig-staff"),
		ClientSignature:   ptr("sig-client"),
		Notes:             "Handover done",
	}
	for _, m := range mutate {
		m(&ts)
	}
	f.store.PutTimesheet(ts)
	return ts
}

func (f *fixture) evaluate(t *testing.T, id uuid.UUID, manual bool) approval.Decision {
	t.Helper()
	d, err := f.engine.Evaluate(context.Background(), approval.Request{TimesheetID: id, ManualTrigger: manual, Now: now})
	require.NoError(t, err)
	return d
}

func TestEngine_ApprovesCleanTimesheet(t *testing.T) {
	f := setup(t, agency.Settings{})
	ts := f.cleanTimesheet()

	d := f.evaluate(t, ts.ID, false)

	assert.True(t, d.Approved())
	assert.Equal(t, approval.ReasonAutoApproved, d.Reason)
	require.NotNil(t, d.ValidationResults)
	assert.True(t, d.ValidationResults.AllChecksPassed)
	assert.Empty(t, d.Issues)

	got, _ := f.store.Timesheet(ts.ID)
	assert.Equal(t, timesheet.StatusApproved, got.Status)
	require.NotNil(t, got.ClientApprovedAt)
	assert.Equal(t, now, *got.ClientApprovedAt)
	assert.Equal(t, "Handover done\n[AUTO-APPROVED: All validation criteria met]", got.Notes)

	sh, _ := f.store.Shift(f.shift.ID)
	assert.True(t, sh.TimesheetReceived)
	assert.Equal(t, shift.StatusCompleted, sh.Status)
	last, ok := sh.ShiftJourneyLog.Last()
	require.True(t, ok)
	assert.Equal(t, shift.StateTimesheetAutoApproved, last.State)
	assert.Equal(t, shift.MethodAutoApproval, last.Method)

	mails := f.notifier.to("jane@staff.test")
	require.Len(t, mails, 1)
	assert.Equal(t, "Timesheet Approved", mails[0].Subject)
	assert.Contains(t, mails[0].Message, "Oakview House on 2025-03-10")
	assert.Empty(t, f.store.Workflows())
}

func TestEngine_HoursWithinTolerance(t *testing.T) {
	f := setup(t, agency.Settings{})
	ts := f.cleanTimesheet(func(ts *timesheet.Timesheet) { ts.TotalHours = ptr(8.25) })

	assert.True(t, f.evaluate(t, ts.ID, false).Approved())
}

func TestEngine_NoConsentSkipsGPS(t *testing.T) {
	f := setup(t, agency.Settings{})
	f.member.GPSConsent = false
	f.store.PutStaff(f.member)
	ts := f.cleanTimesheet(func(ts *timesheet.Timesheet) { ts.GeofenceValidated = nil })

	assert.True(t, f.evaluate(t, ts.ID, false).Approved())
}

func TestEngine_FlagsFailedChecks(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*timesheet.Timesheet)
		issue        approval.Issue
		title        string
		priority     string
		overtimeMail bool
	}{
		{
			name:     "missing client signature",
			mutate:   func(ts *timesheet.Timesheet) { ts.ClientSignature = nil },
			issue:    approval.Issue{Type: approval.IssueMissingSignature, Severity: approval.SeverityHigh, Message: "Missing client signature"},
			title:    "Timesheet Review Required - 1 issue(s)",
			priority: workflow.PriorityHigh,
		},
		{
			name: "outside geofence",
			mutate: func(ts *timesheet.Timesheet) {
				ts.GeofenceValidated = ptr(false)
				ts.GeofenceDistanceMeters = ptr(140.4)
			},
			issue:    approval.Issue{Type: approval.IssueGeofenceViolation, Severity: approval.SeverityHigh, Message: "Clock-in 140m outside geofence"},
			title:    "Timesheet Review Required - 1 issue(s)",
			priority: workflow.PriorityHigh,
		},
		{
			name:     "gps not performed",
			mutate:   func(ts *timesheet.Timesheet) { ts.GeofenceValidated = nil },
			issue:    approval.Issue{Type: approval.IssueMissingGPS, Severity: approval.SeverityMedium, Message: "GPS validation not performed"},
			title:    "Timesheet Pending Review",
			priority: workflow.PriorityMedium,
		},
		{
			name:     "small hours mismatch",
			mutate:   func(ts *timesheet.Timesheet) { ts.TotalHours = ptr(8.5) },
			issue:    approval.Issue{Type: approval.IssueHoursMismatch, Severity: approval.SeverityMedium, Message: "Worked 8.5h, scheduled 8h (+0.5h difference)"},
			title:    "Timesheet Pending Review",
			priority: workflow.PriorityMedium,
		},
		{
			name:         "overtime",
			mutate:       func(ts *timesheet.Timesheet) { ts.TotalHours = ptr(9.5) },
			issue:        approval.Issue{Type: approval.IssueHoursMismatch, Severity: approval.SeverityHigh, Message: "Worked 9.5h, scheduled 8h (+1.5h difference)"},
			title:        "Timesheet Review Required - 1 issue(s)",
			priority:     workflow.PriorityHigh,
			overtimeMail: true,
		},
		{
			name:     "missing hours",
			mutate:   func(ts *timesheet.Timesheet) { ts.TotalHours = nil },
			issue:    approval.Issue{Type: approval.IssueMissingData, Severity: approval.SeverityHigh, Message: "Missing shift reference or total hours"},
			title:    "Timesheet Review Required - 1 issue(s)",
			priority: workflow.PriorityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, agency.Settings{})
			ts := f.cleanTimesheet(tt.mutate)

			d := f.evaluate(t, ts.ID, false)

			assert.False(t, d.Success)
			assert.Equal(t, approval.ActionFlaggedForReview, d.Action)
			assert.Equal(t, approval.ReasonValidationFailed, d.Reason)
			assert.Equal(t, []approval.Issue{tt.issue}, d.Issues)
			assert.Equal(t, "Timesheet flagged for manual review (1 issue)", d.Message)

			got, _ := f.store.Timesheet(ts.ID)
			assert.Equal(t, timesheet.StatusFlagged, got.Status)

			wfs := f.store.WorkflowsFor(workflow.TypeTimesheetDiscrepancy, ts.ID)
			require.Len(t, wfs, 1)
			assert.Equal(t, tt.title, wfs[0].Title)
			assert.Equal(t, tt.priority, wfs[0].Priority)
			assert.Equal(t, workflow.EntityTimesheet, wfs[0].RelatedEntityType)
			assert.Equal(t, tt.issue.Type+": "+tt.issue.Message, wfs[0].Description)

			clientMail := f.notifier.to("priya@oakview.test")
			require.Len(t, clientMail, 1)
			assert.Equal(t, "Action Required: Please Approve Timesheet for Jane's Shift", clientMail[0].Subject)
			assert.Contains(t, clientMail[0].HTML, "https://app.stafflink.test/approve/timesheet/"+ts.ID.String())

			assert.Equal(t, tt.overtimeMail, len(f.notifier.to("payroll@northgate.test")) == 1)
			assert.Empty(t, f.notifier.to("jane@staff.test"))
		})
	}
}

func TestEngine_ExistingDispute(t *testing.T) {
	f := setup(t, agency.Settings{})
	ts := f.cleanTimesheet()
	f.store.PutWorkflow(workflow.AdminWorkflow{
		ID:                uuid.New(),
		AgencyID:          f.agency.ID,
		Type:              workflow.TypeOther,
		Status:            workflow.StatusPending,
		RelatedEntityType: workflow.EntityTimesheet,
		RelatedEntityID:   ts.ID,
	})

	d := f.evaluate(t, ts.ID, false)

	require.Len(t, d.Issues, 1)
	assert.Equal(t, approval.Issue{
		Type:     approval.IssueExistingDispute,
		Severity: approval.SeverityCritical,
		Message:  "1 pending workflow(s) related to this timesheet",
	}, d.Issues[0])
	assert.False(t, d.ValidationResults.NoDisputes)
}

func TestEngine_AlreadyProcessed(t *testing.T) {
	for _, status := range []string{timesheet.StatusApproved, timesheet.StatusRejected} {
		t.Run(status, func(t *testing.T) {
			f := setup(t, agency.Settings{})
			ts := f.cleanTimesheet(func(ts *timesheet.Timesheet) { ts.Status = status })

			d := f.evaluate(t, ts.ID, true)

			assert.False(t, d.Success)
			assert.Equal(t, approval.ReasonAlreadyProcessed, d.Reason)
			got, _ := f.store.Timesheet(ts.ID)
			assert.Equal(t, status, got.Status)
			assert.Empty(t, f.notifier.sent)
		})
	}
}

func TestEngine_AgencyFlag(t *testing.T) {
	disabled := agency.Settings{AutomationSettings: &agency.AutomationSettings{AutoTimesheetApproval: ptr(false)}}

	t.Run("disabled background call", func(t *testing.T) {
		f := setup(t, disabled)
		ts := f.cleanTimesheet()

		d := f.evaluate(t, ts.ID, false)

		assert.Equal(t, approval.ReasonDisabled, d.Reason)
		got, _ := f.store.Timesheet(ts.ID)
		assert.Equal(t, timesheet.StatusSubmitted, got.Status)
	})

	t.Run("manual trigger bypasses the flag", func(t *testing.T) {
		f := setup(t, disabled)
		ts := f.cleanTimesheet()

		assert.True(t, f.evaluate(t, ts.ID, true).Approved())
	})
}

func TestEngine_ManualReviewOfFlaggedTimesheet(t *testing.T) {
	f := setup(t, agency.Settings{})
	ts := f.cleanTimesheet(func(ts *timesheet.Timesheet) { ts.Status = timesheet.StatusFlagged })

	assert.True(t, f.evaluate(t, ts.ID, true).Approved())
	got, _ := f.store.Timesheet(ts.ID)
	assert.Equal(t, timesheet.StatusApproved, got.Status)
}

func TestEngine_TimesheetNotFound(t *testing.T) {
	f := setup(t, agency.Settings{})

	_, err := f.engine.Evaluate(context.Background(), approval.Request{TimesheetID: uuid.New(), Now: now})
	assert.ErrorIs(t, err, timesheeterrors.ErrTimesheetNotFound)
}

func TestEngine_UnknownShiftIsMissingData(t *testing.T) {
	f := setup(t, agency.Settings{})
	ts := f.cleanTimesheet(func(ts *timesheet.Timesheet) { ts.ShiftID = uuid.New() })

	d := f.evaluate(t, ts.ID, false)

	require.Len(t, d.Issues, 1)
	assert.Equal(t, approval.IssueMissingData, d.Issues[0].Type)
	// no shift means no schedule to quote in the client email
	assert.Empty(t, f.notifier.to("priya@oakview.test"))
}
