package models

import (
	"time"
)

// Order mirrors the commerce platform's order header as synced into the
// analytical store. Identifiers are the platform's opaque GID strings
// (gid://shopify/Order/...). This service only reads these rows; the
// ingestion pipeline owns the writes.
type Order struct {
	ID          string     `gorm:"column:id;primaryKey;size:64" json:"id"`
	Name        string     `gorm:"size:64" json:"name"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CancelledAt *time.Time `json:"cancelledAt"`
	ClosedAt    *time.Time `json:"closedAt"`
}

func (Order) TableName() string {
	return "orders"
}
