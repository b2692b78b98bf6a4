package jobreport

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ItemError records one entity that failed inside an otherwise successful
// run. Exactly one id field is set.
type ItemError struct {
	ShiftID     string `json:"shift_id,omitempty"`
	TimesheetID string `json:"timesheet_id,omitempty"`
	AgencyID    string `json:"agency_id,omitempty"`
	Error       string `json:"error"`
}

func ShiftError(id uuid.UUID, err error) ItemError {
	return ItemError{ShiftID: id.String(), Error: err.Error()}
}

func TimesheetError(id uuid.UUID, err error) ItemError {
	return ItemError{TimesheetID: id.String(), Error: err.Error()}
}

func AgencyError(id uuid.UUID, err error) ItemError {
	return ItemError{AgencyID: id.String(), Error: err.Error()}
}

// Errors keeps JSON output as [] rather than null for a clean run.
type Errors []ItemError

func (e Errors) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]ItemError(e))
}
