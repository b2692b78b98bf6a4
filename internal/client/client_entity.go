package client

import "github.com/google/uuid"

type Client struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	AgencyID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Name         string    `gorm:"not null"`
	ContactName  string
	ContactEmail string
}

func (Client) TableName() string {
	return "clients"
}

// DisplayName falls back to a placeholder for missing or unnamed clients.
func DisplayName(c *Client, fallback string) string {
	if c == nil || c.Name == "" {
		return fallback
	}
	return c.Name
}
