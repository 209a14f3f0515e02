package db

import (
	"log"
	"time"

	"gorm.io/gorm"
)

// retentionCutoff returns the timestamp before which call records are
// eligible for deletion.
func retentionCutoff(now time.Time, retentionDays int) time.Time {
	return now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
}

// runRetentionOnce performs a single pass of retention cleanup, deleting
// call records that started before the retention window.
func runRetentionOnce(db *gorm.DB, retentionDays int) error {
	cutoff := retentionCutoff(time.Now(), retentionDays)
	return db.Where("started_at < ?", cutoff).Delete(&CallRecord{}).Error
}

// StartRetentionWorker launches a background goroutine that purges
// expired call records once at startup and then once per day.
func StartRetentionWorker(db *gorm.DB, retentionDays int) {
	go func() {
		if err := runRetentionOnce(db, retentionDays); err != nil {
			log.Printf("call retention cleanup error (startup): %v", err)
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if err := runRetentionOnce(db, retentionDays); err != nil {
				log.Printf("call retention cleanup error: %v", err)
			}
		}
	}()
}
