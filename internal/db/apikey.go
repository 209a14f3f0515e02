package db

import (
	"time"
)

// APIKey is a bearer token for the upstream connectors that push raw
// rows into /v1/sources, the scheduler that triggers pipeline runs, and
// the dashboards that read features back out. Staff sign-in lives in the
// external identity system, not here.
type APIKey struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Name is a friendly identifier for the caller (e.g. "booking-sync").
	Name string `gorm:"size:128;not null"`

	// Key is the actual bearer token value.
	Key string `gorm:"uniqueIndex;size:255;not null"`

	// Active indicates whether this key is currently enabled.
	Active bool `gorm:"default:true"`
}
