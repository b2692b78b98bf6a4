package shift

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JourneyEntry is one immutable step in a shift's audit trail.
type JourneyEntry struct {
	State     string         `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Method    string         `json:"method"`
	Notes     string         `json:"notes,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// JourneyLog is append-only. The store extends it with a JSONB concatenation
// so a concurrent writer can never drop an entry.
type JourneyLog []JourneyEntry

func NewEntry(state, method, notes string, at time.Time) JourneyEntry {
	return JourneyEntry{
		State:     state,
		Timestamp: at.UTC(),
		Method:    method,
		Notes:     notes,
	}
}

// Append returns a new log with e added; the receiver is left untouched.
func (l JourneyLog) Append(e JourneyEntry) JourneyLog {
	out := make(JourneyLog, len(l), len(l)+1)
	copy(out, l)
	return append(out, e)
}

func (l JourneyLog) Last() (JourneyEntry, bool) {
	if len(l) == 0 {
		return JourneyEntry{}, false
	}
	return l[len(l)-1], true
}

func (l JourneyLog) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *JourneyLog) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("shift journey log: unsupported scan type")
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, l)
}
