package db

import (
	"errors"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"clientpulse/internal/config"
)

// Connect opens a GORM database connection using APP_DATABASE_URL (PostgreSQL URL).
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("APP_DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("APP_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}

	// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
	// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{PrepareStmt: true})
	if err != nil {
		return nil, err
	}

	// Auto-migrate the raw sources, the feature store and the audit tables.
	if err := db.AutoMigrate(
		&TrainingSession{},
		&ClientPackage{},
		&Contact{},
		&CallRecord{},
		&Deal{},
		&ClientFeature{},
		&PipelineRun{},
		&APIKey{},
	); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureBootstrapAPIKey makes sure the connector API key from config
// exists in the database. An existing key row is left as-is apart from
// being re-activated if it was disabled.
func EnsureBootstrapAPIKey(db *gorm.DB, cfg *config.Config) error {
	if cfg.ConnectorAPIKey == "" {
		return nil
	}

	// Use Find so "not found" doesn't log as an error.
	var existing APIKey
	if err := db.Where("key = ?", cfg.ConnectorAPIKey).Limit(1).Find(&existing).Error; err != nil {
		return err
	}
	if existing.ID != 0 {
		if !existing.Active {
			existing.Active = true
			return db.Save(&existing).Error
		}
		return nil
	}

	key := &APIKey{
		Name:   "connectors",
		Key:    cfg.ConnectorAPIKey,
		Active: true,
	}
	return db.Create(key).Error
}
