package agency

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const DefaultEscalationMinutes = 15

type Agency struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"not null"`
	Email       string
	Settings    Settings  `gorm:"type:jsonb"`
	CreatedDate time.Time `gorm:"column:created_date;autoCreateTime"`
}

func (Agency) TableName() string {
	return "agencies"
}

// Settings mirrors the agencies.settings JSONB document. Only the automation
// block is read here; other keys are preserved by the UI and ignored.
type Settings struct {
	AutomationSettings *AutomationSettings `json:"automation_settings,omitempty"`
}

// AutomationSettings keeps pointers so an absent key can be told apart from
// an explicit false.
type AutomationSettings struct {
	AutoTimesheetApproval              *bool `json:"auto_timesheet_approval,omitempty"`
	VerifyShiftCompletion              *bool `json:"verify_shift_completion,omitempty"`
	EscalateUnfilledShiftsAfterMinutes *int  `json:"escalate_unfilled_shifts_after_minutes,omitempty"`
}

func (s Settings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Settings) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = Settings{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("agency settings: unsupported scan type")
	}
	if len(raw) == 0 {
		*s = Settings{}
		return nil
	}
	return json.Unmarshal(raw, s)
}

// Policy is the resolved automation configuration with defaults applied.
type Policy struct {
	AutoTimesheetApproval bool
	VerifyShiftCompletion bool
	EscalationThreshold   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		AutoTimesheetApproval: true,
		VerifyShiftCompletion: true,
		EscalationThreshold:   DefaultEscalationMinutes * time.Minute,
	}
}

func (a Agency) Policy() Policy {
	p := DefaultPolicy()
	as := a.Settings.AutomationSettings
	if as == nil {
		return p
	}
	if as.AutoTimesheetApproval != nil {
		p.AutoTimesheetApproval = *as.AutoTimesheetApproval
	}
	if as.VerifyShiftCompletion != nil {
		p.VerifyShiftCompletion = *as.VerifyShiftCompletion
	}
	// zero or negative falls back to the default, like an absent value
	if m := as.EscalateUnfilledShiftsAfterMinutes; m != nil && *m > 0 {
		p.EscalationThreshold = time.Duration(*m) * time.Minute
	}
	return p
}
