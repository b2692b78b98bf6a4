package timesheet

import (
	"context"
	"errors"

	timesheeterrors "stafflink/internal/timesheet/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	FindByStatus(ctx context.Context, status string) ([]Timesheet, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Timesheet, error)
	// UpdateStatus reports whether the row was still in u.From and got updated.
	UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByStatus(ctx context.Context, status string) ([]Timesheet, error) {
	var timesheets []Timesheet
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_date ASC").
		Find(&timesheets).Error
	return timesheets, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Timesheet, error) {
	var t Timesheet
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, timesheeterrors.ErrTimesheetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	updates := map[string]any{"status": u.To}
	if u.ClientApprovedAt != nil {
		updates["client_approved_at"] = *u.ClientApprovedAt
	}
	if u.Note != "" {
		updates["notes"] = gorm.Expr("COALESCE(notes, '') || ?", "\n"+u.Note)
	}

	res := r.db.WithContext(ctx).
		Model(&Timesheet{}).
		Where("id = ? AND status = ?", u.TimesheetID, u.From).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
