package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	dbpkg "clientpulse/internal/db"
)

// Snapshot holds one run's raw rows and the lookup indices built from
// them. It is built once per run and read-only afterwards, so per-client
// feature computation needs no locking.
type Snapshot struct {
	Packages []dbpkg.ClientPackage

	SessionsByEmail  map[string][]dbpkg.TrainingSession
	CallsByNumber    map[string][]dbpkg.CallRecord
	ContactsByEmail  map[string]dbpkg.Contact
	DealsByContactID map[string][]dbpkg.Deal
}

// LoadSnapshot reads all five raw sources concurrently and indexes them.
// Any single failed read aborts the whole run: a systematically missing
// source would silently corrupt every client's features instead of
// failing just one.
func LoadSnapshot(ctx context.Context, gdb *gorm.DB) (*Snapshot, error) {
	var (
		packages []dbpkg.ClientPackage
		sessions []dbpkg.TrainingSession
		contacts []dbpkg.Contact
		calls    []dbpkg.CallRecord
		deals    []dbpkg.Deal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gdb.WithContext(gctx).Find(&packages).Error; err != nil {
			return fmt.Errorf("load client packages: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := gdb.WithContext(gctx).Find(&sessions).Error; err != nil {
			return fmt.Errorf("load training sessions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := gdb.WithContext(gctx).Find(&contacts).Error; err != nil {
			return fmt.Errorf("load contacts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := gdb.WithContext(gctx).Find(&calls).Error; err != nil {
			return fmt.Errorf("load call records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := gdb.WithContext(gctx).Find(&deals).Error; err != nil {
			return fmt.Errorf("load deals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return buildSnapshot(packages, sessions, contacts, calls, deals), nil
}

// buildSnapshot constructs the lookup indices. Email keys are lowercased;
// rows missing their key are ignored rather than indexed under "".
func buildSnapshot(
	packages []dbpkg.ClientPackage,
	sessions []dbpkg.TrainingSession,
	contacts []dbpkg.Contact,
	calls []dbpkg.CallRecord,
	deals []dbpkg.Deal,
) *Snapshot {
	snap := &Snapshot{
		Packages:         packages,
		SessionsByEmail:  make(map[string][]dbpkg.TrainingSession),
		CallsByNumber:    make(map[string][]dbpkg.CallRecord),
		ContactsByEmail:  make(map[string]dbpkg.Contact),
		DealsByContactID: make(map[string][]dbpkg.Deal),
	}

	for _, s := range sessions {
		key := strings.ToLower(s.ClientEmail)
		if key == "" {
			continue
		}
		snap.SessionsByEmail[key] = append(snap.SessionsByEmail[key], s)
	}
	for _, c := range calls {
		if c.CallerNumber == "" {
			continue
		}
		snap.CallsByNumber[c.CallerNumber] = append(snap.CallsByNumber[c.CallerNumber], c)
	}
	for _, c := range contacts {
		key := strings.ToLower(c.Email)
		if key == "" {
			continue
		}
		snap.ContactsByEmail[key] = c
	}
	for _, d := range deals {
		if d.ContactID == "" {
			continue
		}
		snap.DealsByContactID[d.ContactID] = append(snap.DealsByContactID[d.ContactID], d)
	}

	return snap
}
