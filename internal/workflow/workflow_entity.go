package workflow

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeUnfilledUrgentShift         = "unfilled_urgent_shift"
	TypeTimesheetDiscrepancy        = "timesheet_discrepancy"
	TypeShiftCompletionVerification = "shift_completion_verification"
	TypeOther                       = "other"
)

const (
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
)

const (
	EntityShift     = "shift"
	EntityTimesheet = "timesheet"
)

// OpenStatuses are the statuses covered by the one-open-workflow rule.
var OpenStatuses = []string{StatusPending, StatusInProgress}

type AdminWorkflow struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AgencyID          uuid.UUID  `gorm:"type:uuid;not null;index"`
	Type              string     `gorm:"not null"`
	Priority          string     `gorm:"not null"`
	Status            string     `gorm:"not null"`
	Title             string     `gorm:"not null"`
	Description       string
	RelatedEntityType string     `gorm:"not null"`
	RelatedEntityID   uuid.UUID  `gorm:"type:uuid;not null"`
	Deadline          *time.Time
	AutoCreated       bool
	EscalationCount   int
	CreatedDate       time.Time `gorm:"column:created_date;autoCreateTime"`
}

func (AdminWorkflow) TableName() string {
	return "admin_workflows"
}

func (w AdminWorkflow) IsOpen() bool {
	return w.Status == StatusPending || w.Status == StatusInProgress
}

// Draft is what a job asks for; Raise fills in status and bookkeeping.
type Draft struct {
	AgencyID        uuid.UUID
	Type            string
	Priority        string
	Title           string
	Description     string
	EntityType      string
	EntityID        uuid.UUID
	Deadline        *time.Time
	EscalationCount int
}

func DeadlineIn(now time.Time, d time.Duration) *time.Time {
	t := now.Add(d).UTC()
	return &t
}
