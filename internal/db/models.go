package db

import (
	"time"
)

// TrainingSession is one coaching session as synced from the booking
// system. Rows are immutable once synced; the pipeline only reads them.
type TrainingSession struct {
	ID uint `gorm:"primaryKey" json:"-"`

	CreatedAt time.Time `json:"-"`

	ClientEmail string `gorm:"index;size:255" json:"client_email"`

	// Status is the booking system's literal status string: "Completed",
	// a cancellation variant ("Cancelled by client", "Late Cancel", ...)
	// or a no-show variant.
	Status string `gorm:"size:64" json:"status"`

	TrainingDate time.Time `gorm:"index" json:"training_date"`
	CoachName    string    `gorm:"size:128" json:"coach_name"`
	TimeSlot     string    `gorm:"size:32" json:"time_slot"`
}

// ClientPackage is one purchased session bundle. Each package row is one
// unit of work for the feature pipeline; a client without a package row
// is out of scope for a run.
type ClientPackage struct {
	ID uint `gorm:"primaryKey" json:"-"`

	CreatedAt time.Time `json:"-"`

	ClientEmail       string     `gorm:"index;size:255" json:"client_email"`
	ClientName        string     `gorm:"size:255" json:"client_name"`
	PackSize          int        `json:"pack_size"`
	RemainingSessions int        `json:"remaining_sessions"`
	SessionsPerWeek   float64    `json:"sessions_per_week"`
	ExpiryDate        *time.Time `json:"expiry_date"`
	PackageValue      float64    `json:"package_value"`
	LastCoach         string     `gorm:"size:128" json:"last_coach"`
}

// Contact is the CRM record for a client. It carries the join keys that
// tie call records (phone) and deals (CRM id) back to a client email,
// plus the health zone assigned by the external health scoring system.
type Contact struct {
	ID uint `gorm:"primaryKey" json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	Email string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone string `gorm:"index;size:64" json:"phone"`

	// CRMID is the upstream CRM's own identifier, referenced by deals.
	CRMID string `gorm:"column:crm_id;index;size:64" json:"id"`

	// JoinedAt is when the contact was created in the CRM, not when this
	// row was synced. Feeds the months-as-customer feature.
	JoinedAt *time.Time `json:"created_at"`

	// HealthZone is assigned outside this service (GREEN/YELLOW/RED).
	// Blank is treated as YELLOW by the risk classifier.
	HealthZone string `gorm:"size:16" json:"health_zone"`
}

// CallRecord is one logged phone call, keyed to a client through the
// contact's phone number.
type CallRecord struct {
	ID uint `gorm:"primaryKey" json:"-"`

	CreatedAt time.Time `json:"-"`

	CallerNumber string    `gorm:"index;size:64" json:"caller_number"`
	StartedAt    time.Time `gorm:"index" json:"started_at"`
}

// Deal is one row from the deal-tracking system, keyed to a client
// through the contact's CRM id. Some connectors report the monetary
// value as amount, others as deal_value.
type Deal struct {
	ID uint `gorm:"primaryKey" json:"-"`

	CreatedAt time.Time `json:"-"`

	ContactID string  `gorm:"index;size:64" json:"contact_id"`
	Stage     string  `gorm:"size:64" json:"stage"`
	Amount    float64 `json:"amount"`
	DealValue float64 `json:"deal_value"`
}

// Value returns the deal's monetary value, preferring amount and
// falling back to deal_value when amount is unset.
func (d Deal) Value() float64 {
	if d.Amount != 0 {
		return d.Amount
	}
	return d.DealValue
}

// PipelineRun records one invocation of the feature pipeline.
type PipelineRun struct {
	ID uint `gorm:"primaryKey" json:"-"`

	RunID            string    `gorm:"uniqueIndex;size:36;not null" json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	DurationMs       int64     `json:"duration_ms"`
	ClientsProcessed int       `json:"clients_processed"`
	Succeeded        bool      `json:"succeeded"`
	Error            string    `gorm:"size:1024" json:"error,omitempty"`
}
