package db

import (
	"fmt"
	"reflect"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeatureVector is the full set of engagement features computed for one
// client in a pipeline run. Every run recomputes the vector from scratch:
// a feature whose inputs disappear reverts to its default or the 999
// sentinel instead of retaining a stale value.
//
// "Days since/until" fields use 999 to mean "no such event exists or it
// is beyond any practical horizon". The sentinel is part of the stored
// contract and must survive serialization verbatim.
type FeatureVector struct {
	// Session volume
	SessionsLast7d  int `json:"sessions_7d"`
	SessionsLast30d int `json:"sessions_30d"`
	SessionsLast90d int `json:"sessions_90d"`

	// SessionTrend is the OLS slope of weekly session counts over the
	// last 12 weeks with bucket 0 = the current week, so a positive
	// slope means older weeks had more sessions: engagement is declining.
	SessionTrend float64 `json:"session_trend"`

	AvgGapDays             float64 `json:"avg_gap_days"`
	MaxGapDays             float64 `json:"max_gap_days"`
	CancellationRate       float64 `json:"cancellation_rate"`
	NoShowCount            int     `json:"no_show_count"`
	PreferredTimeSlot      string  `json:"preferred_time_slot"`
	TotalCompletedSessions int     `json:"total_completed_sessions"`

	// Package
	RemainingPct      float64 `json:"remaining_pct"`
	RemainingSessions int     `json:"remaining_sessions"`
	PackSize          int     `json:"pack_size"`
	BurnRate          float64 `json:"burn_rate"`
	DaysToDepletion   int     `json:"days_to_depletion"`
	DaysToExpiry      int     `json:"days_to_expiry"`
	PackageValue      float64 `json:"package_value"`

	// Engagement recency
	DaysSinceLastSession int     `json:"days_since_last_session"`
	DaysSinceLastCall    int     `json:"days_since_last_call"`
	FutureBookings       int     `json:"future_bookings"`
	BookingLeadTimeAvg   float64 `json:"booking_lead_time_avg"`

	// Financial
	TotalPaid        float64 `json:"total_paid"`
	MonthsAsCustomer float64 `json:"months_as_customer"`

	// Coach relationship
	CoachTenure      int    `json:"coach_tenure"`
	CoachChangeCount int    `json:"coach_change_count"`
	UniqueCoaches    int    `json:"unique_coaches"`
	CoachName        string `json:"coach_name"`

	// Behavioral
	WeekendWeekdayRatio  float64 `json:"weekend_vs_weekday_ratio"`
	ConsistencyScore     float64 `json:"consistency_score"`
	MomentumVelocity     int     `json:"momentum_velocity"`
	MomentumAcceleration int     `json:"momentum_acceleration"`

	// Deal history
	DealsWon       int     `json:"deals_won"`
	DealsLost      int     `json:"deals_lost"`
	TotalDealValue float64 `json:"total_deal_value"`
}

// FieldCount reports how many features the vector carries.
func (v FeatureVector) FieldCount() int {
	return reflect.TypeOf(v).NumField()
}

// RiskFactors records which classifier conditions fired for a client,
// so a dashboard can explain a score instead of just showing it.
type RiskFactors struct {
	DecliningFrequency  bool `json:"declining_frequency"`
	LowAbsoluteSessions bool `json:"low_absolute_sessions"`
	LongGap             bool `json:"long_gap"`
	PackageDepletion    bool `json:"package_depletion"`
	ZeroRecentActivity  bool `json:"zero_recent_activity"`
	HealthZoneMismatch  bool `json:"health_zone_mismatch"`
}

// RiskAssessment is the classifier's output for one client. It is derived
// purely from the feature vector and the externally assigned health zone
// and has no lifecycle of its own.
type RiskAssessment struct {
	PredictiveRiskScore int         `json:"predictive_risk_score"`
	RiskCategory        string      `json:"risk_category"`
	MomentumIndicator   string      `json:"momentum_indicator"`
	RateOfChangePercent int         `json:"rate_of_change_percent"`
	EarlyWarningFlag    bool        `json:"early_warning_flag"`
	RiskFactors         RiskFactors `json:"risk_factors"`
}

// ClientFeature is the feature store row, one per client email. Each
// pipeline run overwrites the whole row; ComputedAt is the only field
// allowed to differ between two runs over unchanged input.
type ClientFeature struct {
	ID uint `gorm:"primaryKey" json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	ClientEmail string `gorm:"uniqueIndex;size:255;not null" json:"client_email"`
	ClientName  string `gorm:"size:255" json:"client_name"`
	CoachName   string `gorm:"size:128" json:"coach_name"`

	Features     datatypes.JSONType[FeatureVector] `gorm:"type:jsonb" json:"features"`
	FeatureCount int                               `gorm:"not null" json:"feature_count"`

	PredictiveRiskScore int                             `gorm:"not null" json:"predictive_risk_score"`
	RiskCategory        string                          `gorm:"index;size:16;not null" json:"risk_category"`
	MomentumIndicator   string                          `gorm:"size:16;not null" json:"momentum_indicator"`
	RateOfChangePercent int                             `gorm:"not null" json:"rate_of_change_percent"`
	EarlyWarningFlag    bool                            `gorm:"index" json:"early_warning_flag"`
	RiskFactors         datatypes.JSONType[RiskFactors] `gorm:"type:jsonb" json:"risk_factors"`

	ComputedAt time.Time `gorm:"not null" json:"computed_at"`
}

// UpsertBatchSize is the fixed number of feature rows written per upsert.
const UpsertBatchSize = 50

// DedupeByClientEmail collapses records sharing a client email down to
// the last occurrence (the most recent package row wins), preserving
// first-seen order.
func DedupeByClientEmail(records []ClientFeature) []ClientFeature {
	idx := make(map[string]int, len(records))
	out := make([]ClientFeature, 0, len(records))
	for _, r := range records {
		if i, ok := idx[r.ClientEmail]; ok {
			out[i] = r
			continue
		}
		idx[r.ClientEmail] = len(out)
		out = append(out, r)
	}
	return out
}

// splitBatches cuts records into consecutive batches of at most size rows.
func splitBatches(records []ClientFeature, size int) [][]ClientFeature {
	var batches [][]ClientFeature
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}

// UpsertClientFeatures deduplicates records by client email and writes
// them in fixed-size batches, replacing the entire existing row when the
// email already exists. A failing batch aborts the run with an error
// naming the batch; batches committed before it stay committed, and a
// rerun recomputes everything anyway.
func UpsertClientFeatures(gdb *gorm.DB, records []ClientFeature) error {
	records = DedupeByClientEmail(records)
	for i, batch := range splitBatches(records, UpsertBatchSize) {
		if err := gdb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_email"}},
			UpdateAll: true,
		}).Create(&batch).Error; err != nil {
			return fmt.Errorf("feature upsert batch %d: %w", i, err)
		}
	}
	return nil
}
