package pipeline

import (
	"math"

	dbpkg "clientpulse/internal/db"
)

// Health zones assigned by the external health scoring system.
const (
	ZoneGreen  = "GREEN"
	ZoneYellow = "YELLOW"
	ZoneRed    = "RED"
)

// Momentum labels.
const (
	MomentumAccelerating = "ACCELERATING"
	MomentumStable       = "STABLE"
	MomentumDeclining    = "DECLINING"
)

// Risk categories, ordered by severity.
const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// weeksPerMonth converts a 30-day session count into a weekly average.
const weeksPerMonth = 4.3

// Classify turns a feature vector and the externally assigned health
// zone into a bounded risk assessment. The weights and cutoffs are fixed
// business constants; changing any of them desynchronizes new scores
// from every historical assessment.
func Classify(f dbpkg.FeatureVector, healthZone string) dbpkg.RiskAssessment {
	if healthZone == "" {
		healthZone = ZoneYellow
	}

	sessions7d := float64(f.SessionsLast7d)
	avgWeekly30d := float64(f.SessionsLast30d) / weeksPerMonth

	momentum := MomentumStable
	rateOfChange := 0.0
	if avgWeekly30d > 0 {
		rateOfChange = (sessions7d - avgWeekly30d) / avgWeekly30d * 100
		if rateOfChange > 20 {
			momentum = MomentumAccelerating
		} else if rateOfChange < -20 {
			momentum = MomentumDeclining
		}
	} else if f.SessionsLast7d == 0 {
		momentum = MomentumDeclining
	}

	risk := 50.0

	switch momentum {
	case MomentumDeclining:
		risk += 30
	case MomentumAccelerating:
		risk -= 15
	}

	// The sub-1 band only fires if the upstream count arrives fractional
	// (pro-rated weeks); kept so scores stay comparable either way.
	switch {
	case sessions7d == 0:
		risk += 25
	case sessions7d < 1:
		risk += 15
	case sessions7d >= 2:
		risk -= 10
	}

	// DaysSinceLastSession saturates at 999 when no session exists, which
	// lands in the worst band on its own.
	daysSince := f.DaysSinceLastSession
	switch {
	case daysSince > 30:
		risk += 25
	case daysSince > 14:
		risk += 15
	case daysSince <= 7:
		risk -= 10
	}

	if f.RemainingPct < 0.10 && sessions7d < 2 {
		risk += 20
	} else if f.RemainingPct > 0.50 {
		risk -= 10
	}

	if healthZone == ZoneGreen && momentum == MomentumDeclining {
		risk += 10
	}

	score := int(math.Max(0, math.Min(100, risk)))

	category := RiskLow
	switch {
	case score >= 75:
		category = RiskCritical
	case score >= 60:
		category = RiskHigh
	case score >= 40:
		category = RiskMedium
	}

	// Flags clients whose externally assigned zone has not caught up
	// with a deteriorating pattern.
	earlyWarning := (momentum == MomentumDeclining && (healthZone == ZoneGreen || healthZone == ZoneYellow)) ||
		(score > 60 && healthZone != ZoneRed) ||
		(f.SessionsLast7d == 0 && healthZone != ZoneRed)

	return dbpkg.RiskAssessment{
		PredictiveRiskScore: score,
		RiskCategory:        category,
		MomentumIndicator:   momentum,
		RateOfChangePercent: int(math.Round(rateOfChange)),
		EarlyWarningFlag:    earlyWarning,
		RiskFactors: dbpkg.RiskFactors{
			DecliningFrequency:  momentum == MomentumDeclining,
			LowAbsoluteSessions: sessions7d < 1,
			LongGap:             daysSince > 14,
			PackageDepletion:    f.RemainingPct < 0.20,
			ZeroRecentActivity:  f.SessionsLast7d == 0,
			HealthZoneMismatch:  (healthZone == ZoneGreen || healthZone == ZoneYellow) && score > 60,
		},
	}
}
