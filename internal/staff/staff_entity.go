package staff

import (
	"strings"

	"github.com/google/uuid"
)

type Staff struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	AgencyID   uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	GPSConsent bool `gorm:"column:gps_consent"`
}

func (Staff) TableName() string {
	return "staff"
}

func (s Staff) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}
