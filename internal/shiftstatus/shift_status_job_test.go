package shiftstatus_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stafflink/internal/agency"
	"stafflink/internal/shared/testutil/memstore"
	"stafflink/internal/shift"
	"stafflink/internal/shiftstatus"
	"stafflink/internal/workflow"
	workflowmock "stafflink/internal/workflow/mock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

var shiftDay = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return shiftDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fixture struct {
	store  *memstore.Store
	job    *shiftstatus.Job
	agency agency.Agency
}

func setup(t *testing.T, settings agency.Settings) *fixture {
	t.Helper()
	store := memstore.New()
	a := agency.Agency{ID: uuid.New(), Name: "Northgate Care", Settings: settings}
	store.PutAgency(a)

	wf := workflow.NewService(store.WorkflowRepo(), zap.NewNop())
	job := shiftstatus.NewJob(store.Agencies(), store.Shifts(), wf, time.UTC, zap.NewNop())
	return &fixture{store: store, job: job, agency: a}
}

func (f *fixture) addShift(status, start, end string) shift.Shift {
	staffID := uuid.New()
	s := shift.Shift{
		ID:              uuid.New(),
		AgencyID:        f.agency.ID,
		ClientID:        uuid.New(),
		RoleRequired:    "healthcare_assistant",
		Date:            shiftDay,
		StartTime:       start,
		EndTime:         end,
		Status:          status,
		Urgency:         shift.UrgencyNormal,
		AssignedStaffID: &staffID,
	}
	f.store.PutShift(s)
	return s
}

func (f *fixture) status(t *testing.T, id uuid.UUID) shift.Shift {
	t.Helper()
	s, ok := f.store.Shift(id)
	require.True(t, ok)
	return s
}

func TestJob_StartsConfirmedShiftInsideWindow(t *testing.T) {
	f := setup(t, agency.Settings{})
	s := f.addShift(shift.StatusConfirmed, "08:00", "16:00")

	report, err := f.job.Run(context.Background(), at(8, 2))
	require.NoError(t, err)

	assert.Equal(t, 1, report.ShiftsStarted)
	got := f.status(t, s.ID)
	assert.Equal(t, shift.StatusInProgress, got.Status)
	require.NotNil(t, got.ShiftStartedAt)
	last, ok := got.ShiftJourneyLog.Last()
	require.True(t, ok)
	assert.Equal(t, shift.StatusInProgress, last.State)
	assert.Equal(t, shift.MethodAutomated, last.Method)
	assert.Equal(t, "Auto-started at scheduled start time", last.Notes)
}

func TestJob_LeavesConfirmedShiftBeforeStart(t *testing.T) {
	f := setup(t, agency.Settings{})
	s := f.addShift(shift.StatusConfirmed, "08:00", "16:00")

	report, err := f.job.Run(context.Background(), at(7, 59))
	require.NoError(t, err)

	assert.Zero(t, report.ShiftsStarted)
	assert.Equal(t, shift.StatusConfirmed, f.status(t, s.ID).Status)
}

func TestJob_EndsShiftAndRaisesVerification(t *testing.T) {
	f := setup(t, agency.Settings{})
	s := f.addShift(shift.StatusInProgress, "08:00", "16:00")
	now := at(16, 0)

	report, err := f.job.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, report.ShiftsEnded)
	assert.Equal(t, 1, report.WorkflowsCreated)
	assert.Empty(t, report.Errors)

	got := f.status(t, s.ID)
	assert.Equal(t, shift.StatusAwaitingAdminClosure, got.Status)
	require.NotNil(t, got.ShiftEndedAt)

	wfs := f.store.WorkflowsFor(workflow.TypeShiftCompletionVerification, s.ID)
	require.Len(t, wfs, 1)
	assert.Equal(t, workflow.PriorityMedium, wfs[0].Priority)
	assert.Equal(t, "Verify Shift Completion - "+s.ShortID(), wfs[0].Title)
	assert.Equal(t, "Shift ended at 16:00. Please verify timesheet and confirm shift was worked as planned.", wfs[0].Description)
	require.NotNil(t, wfs[0].Deadline)
	assert.Equal(t, now.Add(24*time.Hour), *wfs[0].Deadline)
}

func TestJob_VerificationDisabled(t *testing.T) {
	off := false
	f := setup(t, agency.Settings{AutomationSettings: &agency.AutomationSettings{VerifyShiftCompletion: &off}})
	s := f.addShift(shift.StatusInProgress, "08:00", "16:00")

	report, err := f.job.Run(context.Background(), at(17, 0))
	require.NoError(t, err)

	assert.Equal(t, 1, report.ShiftsEnded)
	assert.Zero(t, report.WorkflowsCreated)
	assert.Equal(t, shift.StatusAwaitingAdminClosure, f.status(t, s.ID).Status)
	assert.Empty(t, f.store.Workflows())
}

func TestJob_ClosesPastDatedConfirmedShift(t *testing.T) {
	f := setup(t, agency.Settings{})
	s := f.addShift(shift.StatusConfirmed, "08:00", "16:00")
	now := shiftDay.Add(36 * time.Hour)

	report, err := f.job.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, report.PastShiftsClosed)
	assert.Zero(t, report.ShiftsStarted)
	assert.Equal(t, shift.StatusAwaitingAdminClosure, f.status(t, s.ID).Status)

	wfs := f.store.WorkflowsFor(workflow.TypeShiftCompletionVerification, s.ID)
	require.Len(t, wfs, 1)
	assert.Equal(t, "Past Shift Needs Closure - "+s.ShortID(), wfs[0].Title)
	assert.Equal(t, "Shift from 2025-03-10 needs admin review. Was it worked? No-show? Cancelled?", wfs[0].Description)
	assert.Equal(t, now.Add(48*time.Hour), *wfs[0].Deadline)
}

func TestJob_OvernightShift(t *testing.T) {
	f := setup(t, agency.Settings{})
	s := f.addShift(shift.StatusConfirmed, "22:00", "06:00")
	ctx := context.Background()

	_, err := f.job.Run(ctx, at(23, 0))
	require.NoError(t, err)
	assert.Equal(t, shift.StatusInProgress, f.status(t, s.ID).Status)

	// still inside the window after midnight
	_, err = f.job.Run(ctx, at(29, 0))
	require.NoError(t, err)
	assert.Equal(t, shift.StatusInProgress, f.status(t, s.ID).Status)

	report, err := f.job.Run(ctx, at(30, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, report.ShiftsEnded)
	assert.Equal(t, shift.StatusAwaitingAdminClosure, f.status(t, s.ID).Status)
}

func TestJob_NeverRegressesStatus(t *testing.T) {
	f := setup(t, agency.Settings{})
	settled := []shift.Shift{
		f.addShift(shift.StatusAwaitingAdminClosure, "08:00", "16:00"),
		f.addShift(shift.StatusCompleted, "08:00", "16:00"),
		f.addShift(shift.StatusCancelled, "08:00", "16:00"),
		f.addShift(shift.StatusOpen, "08:00", "16:00"),
	}
	running := f.addShift(shift.StatusInProgress, "08:00", "16:00")

	// an early clock must not push an in-progress shift back to confirmed
	for _, now := range []time.Time{at(6, 0), at(9, 0), at(12, 0), at(18, 0), at(40, 0)} {
		_, err := f.job.Run(context.Background(), now)
		require.NoError(t, err)
	}

	for _, s := range settled {
		got := f.status(t, s.ID)
		assert.Equal(t, s.Status, got.Status)
		assert.Empty(t, got.ShiftJourneyLog)
	}
	got := f.status(t, running.ID)
	assert.Equal(t, shift.StatusAwaitingAdminClosure, got.Status)
	assert.Len(t, got.ShiftJourneyLog, 1)
}

func TestJob_VerificationWorkflowExactlyOnce(t *testing.T) {
	f := setup(t, agency.Settings{})
	s := f.addShift(shift.StatusInProgress, "08:00", "16:00")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ended int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			report, err := f.job.Run(context.Background(), at(16, offset))
			if assert.NoError(t, err) {
				mu.Lock()
				ended += report.ShiftsEnded
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	_, err := f.job.Run(context.Background(), at(20, 0))
	require.NoError(t, err)

	assert.Equal(t, 1, ended)
	assert.Len(t, f.store.WorkflowsFor(workflow.TypeShiftCompletionVerification, s.ID), 1)
	assert.Len(t, f.status(t, s.ID).ShiftJourneyLog, 1)
}

func TestJob_IsolatesBadShift(t *testing.T) {
	f := setup(t, agency.Settings{})
	bad := f.addShift(shift.StatusConfirmed, "8 o'clock", "16:00")
	good := f.addShift(shift.StatusConfirmed, "08:00", "16:00")

	report, err := f.job.Run(context.Background(), at(9, 0))
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, bad.ID.String(), report.Errors[0].ShiftID)
	assert.Equal(t, 1, report.ShiftsStarted)
	assert.Equal(t, shift.StatusInProgress, f.status(t, good.ID).Status)
}

func TestJob_FetchFailureIsFatal(t *testing.T) {
	f := setup(t, agency.Settings{})
	f.store.FailOn(memstore.OpShiftsFindByStatuses, errors.New("connection refused"))

	report, err := f.job.Run(context.Background(), at(9, 0))
	assert.Error(t, err)
	assert.Nil(t, report)
}

func TestJob_WorkflowFailureKeepsTransition(t *testing.T) {
	store := memstore.New()
	a := agency.Agency{ID: uuid.New(), Name: "Northgate Care"}
	store.PutAgency(a)

	ctrl := gomock.NewController(t)
	wf := workflowmock.NewMockService(ctrl)
	wf.EXPECT().Raise(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d workflow.Draft) (*workflow.AdminWorkflow, error) {
		assert.Equal(t, workflow.TypeShiftCompletionVerification, d.Type)
		return nil, errors.New("insert failed")
	})

	f := &fixture{store: store, agency: a, job: shiftstatus.NewJob(store.Agencies(), store.Shifts(), wf, time.UTC, zap.NewNop())}
	s := f.addShift(shift.StatusInProgress, "08:00", "16:00")

	report, err := f.job.Run(context.Background(), at(16, 5))
	require.NoError(t, err)

	assert.Equal(t, 1, report.ShiftsEnded)
	assert.Equal(t, 0, report.WorkflowsCreated)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, s.ID.String(), report.Errors[0].ShiftID)
	assert.Equal(t, shift.StatusAwaitingAdminClosure, f.status(t, s.ID).Status)

	// the shift has left in_progress, so a later run does not raise again
	report, err = f.job.Run(context.Background(), at(16, 20))
	require.NoError(t, err)
	assert.Zero(t, report.ShiftsEnded)
	assert.Empty(t, report.Errors)
}
