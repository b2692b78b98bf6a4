package approval

import (
	"time"

	"stafflink/internal/agency"
	"stafflink/internal/shift"
	"stafflink/internal/staff"
	"stafflink/internal/timesheet"

	"github.com/google/uuid"
)

const (
	ActionApproved         = "approved"
	ActionFlaggedForReview = "flagged_for_review"

	ReasonAutoApproved     = "auto_approved"
	ReasonValidationFailed = "validation_failed"
	ReasonAlreadyProcessed = "already_processed"
	ReasonDisabled         = "disabled"
)

const (
	IssueMissingSignature  = "missing_signature"
	IssueGeofenceViolation = "geofence_violation"
	IssueMissingGPS        = "missing_gps"
	IssueHoursMismatch     = "hours_mismatch"
	IssueMissingData       = "missing_data"
	IssueExistingDispute   = "existing_dispute"
)

const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Request asks for a decision on one timesheet. Subject carries records the
// caller already loaded; anything left nil is fetched by the engine.
type Request struct {
	TimesheetID   uuid.UUID
	ManualTrigger bool
	Now           time.Time
	Subject       *Subject
}

type Subject struct {
	Timesheet *timesheet.Timesheet
	Shift     *shift.Shift
	Staff     *staff.Staff
	Agency    *agency.Agency
}

type Issue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type ValidationResults struct {
	SignaturesPresent bool `json:"signatures_present"`
	GPSValidated      bool `json:"gps_validated"`
	HoursAcceptable   bool `json:"hours_acceptable"`
	NoDisputes        bool `json:"no_disputes"`
	AllChecksPassed   bool `json:"all_checks_passed"`
}

type Decision struct {
	Success           bool               `json:"success"`
	Action            string             `json:"action,omitempty"`
	Reason            string             `json:"reason"`
	Message           string             `json:"message"`
	TimesheetID       string             `json:"timesheet_id"`
	ValidationResults *ValidationResults `json:"validation_results,omitempty"`
	Issues            []Issue            `json:"issues,omitempty"`
}

// Approved reports whether the engine approved the timesheet.
func (d Decision) Approved() bool {
	return d.Success && d.Action == ActionApproved
}

func hasSevere(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityHigh || i.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
