package pipeline

import (
	"reflect"
	"testing"

	dbpkg "clientpulse/internal/db"
)

func TestClassifyGoneQuietClient(t *testing.T) {
	// A client with zero recent sessions, a 40-day gap and a nearly
	// depleted package maxes out every additive band and clamps at 100.
	f := dbpkg.FeatureVector{
		SessionsLast7d:       0,
		SessionsLast30d:      0,
		DaysSinceLastSession: 40,
		RemainingPct:         0.05,
	}

	got := Classify(f, ZoneGreen)

	if got.PredictiveRiskScore != 100 {
		t.Errorf("score = %d, want 100", got.PredictiveRiskScore)
	}
	if got.RiskCategory != RiskCritical {
		t.Errorf("category = %q, want %q", got.RiskCategory, RiskCritical)
	}
	if got.MomentumIndicator != MomentumDeclining {
		t.Errorf("momentum = %q, want %q", got.MomentumIndicator, MomentumDeclining)
	}
	if !got.EarlyWarningFlag {
		t.Error("early warning flag not set")
	}
	wantFactors := dbpkg.RiskFactors{
		DecliningFrequency:  true,
		LowAbsoluteSessions: true,
		LongGap:             true,
		PackageDepletion:    true,
		ZeroRecentActivity:  true,
		HealthZoneMismatch:  true,
	}
	if got.RiskFactors != wantFactors {
		t.Errorf("risk factors = %+v, want all set", got.RiskFactors)
	}
}

func TestClassifyMomentumIndicator(t *testing.T) {
	tests := []struct {
		name     string
		s7, s30  int
		momentum string
	}{
		{"well above 30d average", 3, 4, MomentumAccelerating},
		{"well below 30d average", 1, 10, MomentumDeclining},
		{"near 30d average", 2, 9, MomentumStable},
		{"stopped this week", 0, 5, MomentumDeclining},
		{"new client with recent sessions", 2, 0, MomentumStable},
		{"never active", 0, 0, MomentumDeclining},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := dbpkg.FeatureVector{SessionsLast7d: tt.s7, SessionsLast30d: tt.s30}
			got := Classify(f, ZoneYellow)
			if got.MomentumIndicator != tt.momentum {
				t.Errorf("momentum = %q, want %q", got.MomentumIndicator, tt.momentum)
			}
		})
	}
}

func TestClassifyRateOfChangeRounded(t *testing.T) {
	f := dbpkg.FeatureVector{SessionsLast7d: 1, SessionsLast30d: 10}
	if got := Classify(f, ZoneYellow); got.RateOfChangePercent != -57 {
		t.Errorf("RateOfChangePercent = %d, want -57", got.RateOfChangePercent)
	}
}

func TestClassifyZeroAverageKeepsRateZero(t *testing.T) {
	f := dbpkg.FeatureVector{SessionsLast7d: 0, SessionsLast30d: 0}
	if got := Classify(f, ZoneYellow); got.RateOfChangePercent != 0 {
		t.Errorf("RateOfChangePercent = %d, want 0 when 30d average is zero", got.RateOfChangePercent)
	}
}

func TestClassifyCategoryCutoffs(t *testing.T) {
	tests := []struct {
		name      string
		f         dbpkg.FeatureVector
		wantScore int
		wantCat   string
	}{
		{
			name:      "declining with long gap",
			f:         dbpkg.FeatureVector{SessionsLast7d: 2, SessionsLast30d: 43, DaysSinceLastSession: 20, RemainingPct: 0.6},
			wantScore: 75,
			wantCat:   RiskCritical,
		},
		{
			name:      "declining with mid gap",
			f:         dbpkg.FeatureVector{SessionsLast7d: 2, SessionsLast30d: 43, DaysSinceLastSession: 10, RemainingPct: 0.6},
			wantScore: 60,
			wantCat:   RiskHigh,
		},
		{
			name:      "steady but light",
			f:         dbpkg.FeatureVector{SessionsLast7d: 1, SessionsLast30d: 4, DaysSinceLastSession: 5, RemainingPct: 0.3},
			wantScore: 40,
			wantCat:   RiskMedium,
		},
		{
			name:      "active and stocked",
			f:         dbpkg.FeatureVector{SessionsLast7d: 2, SessionsLast30d: 8, DaysSinceLastSession: 5, RemainingPct: 0.6},
			wantScore: 20,
			wantCat:   RiskLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.f, ZoneYellow)
			if got.PredictiveRiskScore != tt.wantScore {
				t.Errorf("score = %d, want %d", got.PredictiveRiskScore, tt.wantScore)
			}
			if got.RiskCategory != tt.wantCat {
				t.Errorf("category = %q, want %q", got.RiskCategory, tt.wantCat)
			}
		})
	}
}

func TestClassifyScoreStaysBounded(t *testing.T) {
	zones := []string{ZoneGreen, ZoneYellow, ZoneRed, ""}
	for _, s7 := range []int{0, 1, 2, 5} {
		for _, s30 := range []int{0, 4, 20, 43} {
			for _, daysSince := range []int{0, 5, 10, 20, 40, SentinelDays} {
				for _, rem := range []float64{0, 0.05, 0.15, 0.3, 0.6, 1} {
					for _, zone := range zones {
						f := dbpkg.FeatureVector{
							SessionsLast7d:       s7,
							SessionsLast30d:      s30,
							DaysSinceLastSession: daysSince,
							RemainingPct:         rem,
						}
						got := Classify(f, zone)
						if got.PredictiveRiskScore < 0 || got.PredictiveRiskScore > 100 {
							t.Fatalf("Classify(s7=%d s30=%d days=%d rem=%v zone=%q) score %d out of bounds",
								s7, s30, daysSince, rem, zone, got.PredictiveRiskScore)
						}
						if wantCat := categoryForScore(got.PredictiveRiskScore); got.RiskCategory != wantCat {
							t.Fatalf("score %d classified %q, want %q", got.PredictiveRiskScore, got.RiskCategory, wantCat)
						}
					}
				}
			}
		}
	}
}

func categoryForScore(score int) string {
	switch {
	case score >= 75:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

func TestClassifyBlankZoneTreatedAsYellow(t *testing.T) {
	f := dbpkg.FeatureVector{
		SessionsLast7d:       1,
		SessionsLast30d:      10,
		DaysSinceLastSession: 10,
		RemainingPct:         0.3,
	}

	blank := Classify(f, "")
	yellow := Classify(f, ZoneYellow)
	if !reflect.DeepEqual(blank, yellow) {
		t.Errorf("blank zone assessment %+v differs from YELLOW %+v", blank, yellow)
	}

	// GREEN adds the mismatch penalty for declining clients, so the
	// blank default must not behave like GREEN.
	green := Classify(f, ZoneGreen)
	if green.PredictiveRiskScore != blank.PredictiveRiskScore+10 {
		t.Errorf("GREEN score = %d, want %d", green.PredictiveRiskScore, blank.PredictiveRiskScore+10)
	}
}

func TestClassifyEarlyWarning(t *testing.T) {
	tests := []struct {
		name string
		f    dbpkg.FeatureVector
		zone string
		want bool
	}{
		{
			name: "declining in green zone",
			f:    dbpkg.FeatureVector{SessionsLast7d: 1, SessionsLast30d: 10, DaysSinceLastSession: 5, RemainingPct: 0.6},
			zone: ZoneGreen,
			want: true,
		},
		{
			name: "declining already red",
			f:    dbpkg.FeatureVector{SessionsLast7d: 1, SessionsLast30d: 10, DaysSinceLastSession: 5, RemainingPct: 0.6},
			zone: ZoneRed,
			want: false,
		},
		{
			name: "zero activity not yet red",
			f:    dbpkg.FeatureVector{SessionsLast7d: 0, SessionsLast30d: 9, DaysSinceLastSession: 6, RemainingPct: 0.6},
			zone: ZoneYellow,
			want: true,
		},
		{
			name: "healthy and active",
			f:    dbpkg.FeatureVector{SessionsLast7d: 2, SessionsLast30d: 8, DaysSinceLastSession: 2, RemainingPct: 0.6},
			zone: ZoneGreen,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.f, tt.zone); got.EarlyWarningFlag != tt.want {
				t.Errorf("EarlyWarningFlag = %v, want %v", got.EarlyWarningFlag, tt.want)
			}
		})
	}
}
