package timesheet

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusFlagged   = "flagged"
	StatusRejected  = "rejected"
)

type Timesheet struct {
	ID                     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ShiftID                uuid.UUID `gorm:"type:uuid;not null;index"`
	StaffID                uuid.UUID `gorm:"type:uuid;not null"`
	AgencyID               uuid.UUID `gorm:"type:uuid;not null;index"`
	ClientID               *uuid.UUID `gorm:"type:uuid"`
	Status                 string     `gorm:"not null;index"`
	ActualStartTime        *string
	ActualEndTime          *string
	TotalHours             *float64
	GeofenceValidated      *bool
	GeofenceDistanceMeters *float64
	StaffSignature         *string
	ClientSignature        *string
	Notes                  string
	ClientApprovedAt       *time.Time
	CreatedDate            time.Time `gorm:"column:created_date;autoCreateTime"`
}

func (Timesheet) TableName() string {
	return "timesheets"
}

// Terminal reports whether no automated decision may touch the timesheet.
func (t Timesheet) Terminal() bool {
	return t.Status == StatusApproved || t.Status == StatusRejected
}

func (t Timesheet) HasStaffSignature() bool {
	return t.StaffSignature != nil && *t.StaffSignature != ""
}

func (t Timesheet) HasClientSignature() bool {
	return t.ClientSignature != nil && *t.ClientSignature != ""
}

// StatusUpdate is a compare-and-set on the timesheet status.
type StatusUpdate struct {
	TimesheetID      uuid.UUID
	From             string
	To               string
	ClientApprovedAt *time.Time
	// appended to notes on its own line
	Note string
}
