package tenant

import "gorm.io/gorm"

// Scope restricts a query to rows owned by one agency.
func Scope(agencyID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("agency_id = ?", agencyID)
	}
}
