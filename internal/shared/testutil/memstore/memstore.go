// Package memstore keeps the automation data model in memory for tests only.
// Job tests replay several runs against shared state, so it honours the same
// compare-and-set and one-open-workflow rules as the Postgres store. Nothing
// outside _test.go files may import it.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"stafflink/internal/agency"
	"stafflink/internal/client"
	"stafflink/internal/shift"
	shifterrors "stafflink/internal/shift/errors"
	"stafflink/internal/staff"
	"stafflink/internal/timesheet"
	timesheeterrors "stafflink/internal/timesheet/errors"
	"stafflink/internal/workflow"
	workflowerrors "stafflink/internal/workflow/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Store struct {
	mu         sync.Mutex
	agencies   map[uuid.UUID]agency.Agency
	shifts     map[uuid.UUID]shift.Shift
	timesheets map[uuid.UUID]timesheet.Timesheet
	staff      map[uuid.UUID]staff.Staff
	clients    map[uuid.UUID]client.Client
	workflows  []workflow.AdminWorkflow
	failures   map[string]error
}

func New() *Store {
	return &Store{
		agencies:   map[uuid.UUID]agency.Agency{},
		shifts:     map[uuid.UUID]shift.Shift{},
		timesheets: map[uuid.UUID]timesheet.Timesheet{},
		staff:      map[uuid.UUID]staff.Staff{},
		clients:    map[uuid.UUID]client.Client{},
		failures:   map[string]error{},
	}
}

// Op names accepted by FailOn.
const (
	OpAgenciesFindAll      = "agencies.find_all"
	OpClientsFindByIDs     = "clients.find_by_ids"
	OpShiftsFindAll        = "shifts.find_all"
	OpShiftsFindByStatuses = "shifts.find_by_statuses"
	OpShiftsFindOpenUrgent = "shifts.find_open_urgent"
	OpShiftsTransition     = "shifts.transition"
	OpTimesheetsFindStatus = "timesheets.find_by_status"
	OpWorkflowsCreate      = "workflows.create"
)

// FailOn makes every later call of op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

func (s *Store) PutAgency(a agency.Agency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agencies[a.ID] = a
}

func (s *Store) PutShift(sh shift.Shift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts[sh.ID] = sh
}

func (s *Store) PutTimesheet(t timesheet.Timesheet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timesheets[t.ID] = t
}

func (s *Store) PutStaff(m staff.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[m.ID] = m
}

func (s *Store) PutClient(c client.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

func (s *Store) PutWorkflow(wf workflow.AdminWorkflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows = append(s.workflows, wf)
}

func (s *Store) Shift(id uuid.UUID) (shift.Shift, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shifts[id]
	return cloneShift(sh), ok
}

func (s *Store) Timesheet(id uuid.UUID) (timesheet.Timesheet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timesheets[id]
	return t, ok
}

// Workflows returns every stored workflow in creation order.
func (s *Store) Workflows() []workflow.AdminWorkflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]workflow.AdminWorkflow, len(s.workflows))
	copy(out, s.workflows)
	return out
}

// WorkflowsFor filters Workflows by type and related entity.
func (s *Store) WorkflowsFor(wfType string, entityID uuid.UUID) []workflow.AdminWorkflow {
	var out []workflow.AdminWorkflow
	for _, wf := range s.Workflows() {
		if wf.Type == wfType && wf.RelatedEntityID == entityID {
			out = append(out, wf)
		}
	}
	return out
}

// ResolveWorkflow closes a workflow the way an operator would.
func (s *Store) ResolveWorkflow(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.workflows {
		if s.workflows[i].ID == id {
			s.workflows[i].Status = workflow.StatusResolved
		}
	}
}

func (s *Store) Agencies() agency.Repository       { return agencyRepo{s} }
func (s *Store) Shifts() shift.Repository          { return shiftRepo{s} }
func (s *Store) Timesheets() timesheet.Repository  { return timesheetRepo{s} }
func (s *Store) Staff() staff.Repository           { return staffRepo{s} }
func (s *Store) Clients() client.Repository        { return clientRepo{s} }
func (s *Store) WorkflowRepo() workflow.Repository { return workflowRepo{s} }

type agencyRepo struct{ s *Store }

func (r agencyRepo) FindAll(context.Context) ([]agency.Agency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(OpAgenciesFindAll); err != nil {
		return nil, err
	}
	out := make([]agency.Agency, 0, len(r.s.agencies))
	for _, a := range r.s.agencies {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r agencyRepo) FindByID(_ context.Context, id uuid.UUID) (*agency.Agency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.agencies[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

type shiftRepo struct{ s *Store }

func (r shiftRepo) sorted(keep func(shift.Shift) bool) []shift.Shift {
	var out []shift.Shift
	for _, sh := range r.s.shifts {
		if keep(sh) {
			out = append(out, cloneShift(sh))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].CreatedDate.Before(out[j].CreatedDate)
	})
	return out
}

func (r shiftRepo) FindAll(context.Context) ([]shift.Shift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(OpShiftsFindAll); err != nil {
		return nil, err
	}
	return r.sorted(func(shift.Shift) bool { return true }), nil
}

func (r shiftRepo) FindByStatuses(_ context.Context, statuses ...string) ([]shift.Shift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(OpShiftsFindByStatuses); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	return r.sorted(func(sh shift.Shift) bool { return want[sh.Status] }), nil
}

func (r shiftRepo) FindOpenUrgentByAgency(_ context.Context, agencyID uuid.UUID) ([]shift.Shift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(OpShiftsFindOpenUrgent); err != nil {
		return nil, err
	}
	return r.sorted(func(sh shift.Shift) bool {
		return sh.AgencyID == agencyID &&
			sh.Status == shift.StatusOpen &&
			(sh.Urgency == shift.UrgencyUrgent || sh.Urgency == shift.UrgencyCritical)
	}), nil
}

func (r shiftRepo) FindByID(_ context.Context, id uuid.UUID) (*shift.Shift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sh, ok := r.s.shifts[id]
	if !ok {
		return nil, shifterrors.ErrShiftNotFound
	}
	sh = cloneShift(sh)
	return &sh, nil
}

func (r shiftRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]shift.Shift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []shift.Shift
	for _, id := range ids {
		if sh, ok := r.s.shifts[id]; ok {
			out = append(out, cloneShift(sh))
		}
	}
	return out, nil
}

func (r shiftRepo) Transition(_ context.Context, t shift.StatusTransition) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(OpShiftsTransition); err != nil {
		return false, err
	}
	sh, ok := r.s.shifts[t.ShiftID]
	if !ok || sh.Status != t.From {
		return false, nil
	}
	sh.Status = t.To
	sh.ShiftJourneyLog = sh.ShiftJourneyLog.Append(t.Entry)
	if t.StartedAt != nil {
		at := *t.StartedAt
		sh.ShiftStartedAt = &at
	}
	if t.EndedAt != nil {
		at := *t.EndedAt
		sh.ShiftEndedAt = &at
	}
	r.s.shifts[sh.ID] = sh
	return true, nil
}

func (r shiftRepo) MarkTimesheetReceived(_ context.Context, id uuid.UUID, entry shift.JourneyEntry, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sh, ok := r.s.shifts[id]
	if !ok {
		return shifterrors.ErrShiftNotFound
	}
	sh.TimesheetReceived = true
	sh.TimesheetReceivedAt = &at
	sh.ShiftJourneyLog = sh.ShiftJourneyLog.Append(entry)
	r.s.shifts[id] = sh
	return nil
}

func cloneShift(sh shift.Shift) shift.Shift {
	if sh.ShiftJourneyLog != nil {
		log := make(shift.JourneyLog, len(sh.ShiftJourneyLog))
		copy(log, sh.ShiftJourneyLog)
		sh.ShiftJourneyLog = log
	}
	return sh
}

type timesheetRepo struct{ s *Store }

func (r timesheetRepo) FindByStatus(_ context.Context, status string) ([]timesheet.Timesheet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(OpTimesheetsFindStatus); err != nil {
		return nil, err
	}
	var out []timesheet.Timesheet
	for _, t := range r.s.timesheets {
		if t.Status == status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedDate.Before(out[j].CreatedDate) })
	return out, nil
}

func (r timesheetRepo) FindByID(_ context.Context, id uuid.UUID) (*timesheet.Timesheet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.timesheets[id]
	if !ok {
		return nil, timesheeterrors.ErrTimesheetNotFound
	}
	return &t, nil
}

func (r timesheetRepo) UpdateStatus(_ context.Context, u timesheet.StatusUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.timesheets[u.TimesheetID]
	if !ok || t.Status != u.From {
		return false, nil
	}
	t.Status = u.To
	if u.ClientApprovedAt != nil {
		at := *u.ClientApprovedAt
		t.ClientApprovedAt = &at
	}
	if u.Note != "" {
		t.Notes += "\n" + u.Note
	}
	r.s.timesheets[t.ID] = t
	return true, nil
}

type staffRepo struct{ s *Store }

func (r staffRepo) FindByID(_ context.Context, id uuid.UUID) (*staff.Staff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.staff[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (r staffRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]staff.Staff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []staff.Staff
	for _, id := range ids {
		if m, ok := r.s.staff[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

type clientRepo struct{ s *Store }

func (r clientRepo) FindByID(_ context.Context, id uuid.UUID) (*client.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r clientRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]client.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(OpClientsFindByIDs); err != nil {
		return nil, err
	}
	var out []client.Client
	for _, id := range ids {
		if c, ok := r.s.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type workflowRepo struct{ s *Store }

func (r workflowRepo) HasOpen(_ context.Context, wfType, entityType string, entityID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.openIndex(wfType, entityType, entityID) >= 0, nil
}

func (r workflowRepo) CountOpenForEntity(_ context.Context, entityType string, entityID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, wf := range r.s.workflows {
		if wf.IsOpen() && wf.RelatedEntityType == entityType && wf.RelatedEntityID == entityID {
			n++
		}
	}
	return n, nil
}

// Create enforces the open-entity uniqueness the partial index gives Postgres.
func (r workflowRepo) Create(_ context.Context, wf *workflow.AdminWorkflow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(OpWorkflowsCreate); err != nil {
		return err
	}
	if wf.IsOpen() && r.s.openIndex(wf.Type, wf.RelatedEntityType, wf.RelatedEntityID) >= 0 {
		return workflowerrors.ErrOpenWorkflowExists
	}
	if wf.CreatedDate.IsZero() {
		wf.CreatedDate = time.Now().UTC()
	}
	r.s.workflows = append(r.s.workflows, *wf)
	return nil
}

func (s *Store) openIndex(wfType, entityType string, entityID uuid.UUID) int {
	for i, wf := range s.workflows {
		if wf.IsOpen() && wf.Type == wfType && wf.RelatedEntityType == entityType && wf.RelatedEntityID == entityID {
			return i
		}
	}
	return -1
}
