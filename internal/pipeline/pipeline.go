package pipeline

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "clientpulse/internal/db"
)

// Summary is the JSON result of one pipeline invocation.
type Summary struct {
	Success          bool                 `json:"success"`
	ClientsProcessed int                  `json:"clients_processed"`
	AvgFeatureCount  int                  `json:"avg_feature_count"`
	Sample           *dbpkg.FeatureVector `json:"sample,omitempty"`
	Error            string               `json:"error,omitempty"`
}

// Run executes one full feature-extraction and risk-scoring pass:
// concurrent source loads and indexing, per-client extraction and
// classification, then deduplicated batched upserts into the feature
// store. Reruns over unchanged input are idempotent apart from
// computed_at, so the external scheduler can simply retry a failed run.
func Run(ctx context.Context, gdb *gorm.DB) (*Summary, error) {
	started := time.Now().UTC()
	runID := uuid.NewString()

	snap, err := LoadSnapshot(ctx, gdb)
	if err != nil {
		return nil, recordRun(gdb, runID, started, 0, err)
	}
	if len(snap.Packages) == 0 {
		return nil, recordRun(gdb, runID, started, 0, errors.New("no client packages found"))
	}

	records := BuildAll(snap, started)

	if err := dbpkg.UpsertClientFeatures(gdb, records); err != nil {
		return nil, recordRun(gdb, runID, started, 0, err)
	}

	summary := &Summary{Success: true, ClientsProcessed: len(records)}
	if len(records) > 0 {
		total := 0
		for _, r := range records {
			total += r.FeatureCount
		}
		summary.AvgFeatureCount = int(math.Round(float64(total) / float64(len(records))))
		sample := records[0].Features.Data()
		summary.Sample = &sample
	}

	if err := recordRun(gdb, runID, started, len(records), nil); err != nil {
		// The features are committed; a failed audit row is not fatal.
		log.Printf("pipeline: failed to record run %s: %v", runID, err)
	}
	return summary, nil
}

// BuildAll computes a deduplicated feature record per in-scope client.
// Package rows without a resolvable email are skipped and logged; when a
// client has several package rows the last one wins.
func BuildAll(snap *Snapshot, now time.Time) []dbpkg.ClientFeature {
	records := make([]dbpkg.ClientFeature, 0, len(snap.Packages))
	for _, pkg := range snap.Packages {
		email := strings.ToLower(pkg.ClientEmail)
		if email == "" {
			log.Printf("pipeline: skipping package %d (%s): no client email", pkg.ID, pkg.ClientName)
			continue
		}

		vector := BuildFeatures(pkg, snap, now)

		zone := ""
		if contact, ok := snap.ContactsByEmail[email]; ok {
			zone = contact.HealthZone
		}
		assessment := Classify(vector, zone)

		records = append(records, dbpkg.ClientFeature{
			ClientEmail:         email,
			ClientName:          pkg.ClientName,
			CoachName:           pkg.LastCoach,
			Features:            datatypes.NewJSONType(vector),
			FeatureCount:        vector.FieldCount(),
			PredictiveRiskScore: assessment.PredictiveRiskScore,
			RiskCategory:        assessment.RiskCategory,
			MomentumIndicator:   assessment.MomentumIndicator,
			RateOfChangePercent: assessment.RateOfChangePercent,
			EarlyWarningFlag:    assessment.EarlyWarningFlag,
			RiskFactors:         datatypes.NewJSONType(assessment.RiskFactors),
			ComputedAt:          now,
		})
	}
	return dbpkg.DedupeByClientEmail(records)
}

// recordRun writes the audit row for a run and passes runErr through so
// callers can return it directly.
func recordRun(gdb *gorm.DB, runID string, started time.Time, clients int, runErr error) error {
	finished := time.Now().UTC()
	run := dbpkg.PipelineRun{
		RunID:            runID,
		StartedAt:        started,
		FinishedAt:       finished,
		DurationMs:       finished.Sub(started).Milliseconds(),
		ClientsProcessed: clients,
		Succeeded:        runErr == nil,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := gdb.Create(&run).Error; err != nil {
		if runErr != nil {
			log.Printf("pipeline: failed to record failed run %s: %v", runID, err)
			return runErr
		}
		return err
	}
	return runErr
}
