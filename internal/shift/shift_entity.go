package shift

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusOpen                 = "open"
	StatusAssigned             = "assigned"
	StatusConfirmed            = "confirmed"
	StatusInProgress           = "in_progress"
	StatusAwaitingAdminClosure = "awaiting_admin_closure"
	StatusCompleted            = "completed"
	StatusCancelled            = "cancelled"
	StatusNoShow               = "no_show"
	StatusUnfilledEscalated    = "unfilled_escalated"
)

const (
	UrgencyNormal   = "normal"
	UrgencyUrgent   = "urgent"
	UrgencyCritical = "critical"
)

const (
	MethodAutomated    = "automated"
	MethodAutoApproval = "auto_approval_engine"
	MethodEscalation   = "escalation_engine"

	StateTimesheetAutoApproved = "timesheet_auto_approved"
)

type Shift struct {
	ID                     uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AgencyID               uuid.UUID  `gorm:"type:uuid;not null;index"`
	ClientID               uuid.UUID  `gorm:"type:uuid;not null"`
	RoleRequired           string     `gorm:"not null"`
	Date                   time.Time  `gorm:"type:date;not null"`
	StartTime              string     `gorm:"not null"`
	EndTime                string     `gorm:"not null"`
	Status                 string     `gorm:"not null;index"`
	Urgency                string     `gorm:"not null;default:normal"`
	AssignedStaffID        *uuid.UUID `gorm:"type:uuid"`
	MarketplaceVisible     bool
	TimesheetReceived      bool
	TimesheetReceivedAt    *time.Time
	ShiftStartedAt         *time.Time
	ShiftEndedAt           *time.Time
	AdminClosedAt          *time.Time
	ShiftJourneyLog        JourneyLog `gorm:"type:jsonb"`
	WorkLocationWithinSite *string
	CreatedDate            time.Time `gorm:"column:created_date;autoCreateTime"`
}

func (Shift) TableName() string {
	return "shifts"
}

// StatusTransition is a compare-and-set status change: it applies only while
// the shift is still in From.
type StatusTransition struct {
	ShiftID   uuid.UUID
	From      string
	To        string
	Entry     JourneyEntry
	StartedAt *time.Time
	EndedAt   *time.Time
}
