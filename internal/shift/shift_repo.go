package shift

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	shifterrors "stafflink/internal/shift/errors"
	"stafflink/internal/tenant"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	FindAll(ctx context.Context) ([]Shift, error)
	FindByStatuses(ctx context.Context, statuses ...string) ([]Shift, error)
	FindOpenUrgentByAgency(ctx context.Context, agencyID uuid.UUID) ([]Shift, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Shift, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Shift, error)
	// Transition reports whether the row was still in t.From and got updated.
	Transition(ctx context.Context, t StatusTransition) (bool, error)
	MarkTimesheetReceived(ctx context.Context, id uuid.UUID, entry JourneyEntry, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindAll(ctx context.Context) ([]Shift, error) {
	var shifts []Shift
	err := r.db.WithContext(ctx).Order("date ASC, start_time ASC").Find(&shifts).Error
	return shifts, err
}

func (r *repository) FindByStatuses(ctx context.Context, statuses ...string) ([]Shift, error) {
	var shifts []Shift
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("date ASC, start_time ASC").
		Find(&shifts).Error
	return shifts, err
}

func (r *repository) FindOpenUrgentByAgency(ctx context.Context, agencyID uuid.UUID) ([]Shift, error) {
	var shifts []Shift
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(agencyID.String())).
		Where("status = ?", StatusOpen).
		Where("urgency IN ?", []string{UrgencyUrgent, UrgencyCritical}).
		Order("created_date ASC").
		Find(&shifts).Error
	return shifts, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Shift, error) {
	var s Shift
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shifterrors.ErrShiftNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Shift, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var shifts []Shift
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&shifts).Error
	return shifts, err
}

func (r *repository) Transition(ctx context.Context, t StatusTransition) (bool, error) {
	entry, err := json.Marshal(JourneyLog{t.Entry})
	if err != nil {
		return false, err
	}

	updates := map[string]any{
		"status":            t.To,
		"shift_journey_log": appendJourney(entry),
	}
	if t.StartedAt != nil {
		updates["shift_started_at"] = *t.StartedAt
	}
	if t.EndedAt != nil {
		updates["shift_ended_at"] = *t.EndedAt
	}

	res := r.db.WithContext(ctx).
		Model(&Shift{}).
		Where("id = ? AND status = ?", t.ShiftID, t.From).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkTimesheetReceived(ctx context.Context, id uuid.UUID, entry JourneyEntry, at time.Time) error {
	raw, err := json.Marshal(JourneyLog{entry})
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).
		Model(&Shift{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"timesheet_received":    true,
			"timesheet_received_at": at,
			"shift_journey_log":     appendJourney(raw),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shifterrors.ErrShiftNotFound
	}
	return nil
}

func appendJourney(entries []byte) any {
	return gorm.Expr("COALESCE(shift_journey_log, '[]'::jsonb) || CAST(? AS jsonb)", string(entries))
}
