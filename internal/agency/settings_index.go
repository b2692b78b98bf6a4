package agency

import "github.com/google/uuid"

// SettingsIndex is the per-run snapshot of agency configuration, fetched
// once and looked up by id for every item the job touches.
type SettingsIndex struct {
	agencies map[uuid.UUID]Agency
}

func NewSettingsIndex(agencies []Agency) SettingsIndex {
	m := make(map[uuid.UUID]Agency, len(agencies))
	for _, a := range agencies {
		m[a.ID] = a
	}
	return SettingsIndex{agencies: m}
}

func (i SettingsIndex) Get(id uuid.UUID) (Agency, bool) {
	a, ok := i.agencies[id]
	return a, ok
}

// Policy returns the agency's policy, or the defaults for an unknown agency.
func (i SettingsIndex) Policy(id uuid.UUID) Policy {
	if a, ok := i.agencies[id]; ok {
		return a.Policy()
	}
	return DefaultPolicy()
}

func (i SettingsIndex) Len() int {
	return len(i.agencies)
}
