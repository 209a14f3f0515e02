package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_DATABASE_URL", "")
	t.Setenv("APP_LISTEN_ADDR", "")
	t.Setenv("APP_CONNECTOR_API_KEY", "")
	t.Setenv("APP_CALL_RETENTION_DAYS", "")

	cfg := Load()

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.CallRetentionDays != 365 {
		t.Errorf("CallRetentionDays = %d, want 365", cfg.CallRetentionDays)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_DATABASE_URL", "postgres://localhost/clientpulse")
	t.Setenv("APP_LISTEN_ADDR", ":9090")
	t.Setenv("APP_CONNECTOR_API_KEY", "secret")
	t.Setenv("APP_CALL_RETENTION_DAYS", "90")

	cfg := Load()

	if cfg.DatabaseURL != "postgres://localhost/clientpulse" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.ListenAddr)
	}
	if cfg.ConnectorAPIKey != "secret" {
		t.Errorf("ConnectorAPIKey = %q, want secret", cfg.ConnectorAPIKey)
	}
	if cfg.CallRetentionDays != 90 {
		t.Errorf("CallRetentionDays = %d, want 90", cfg.CallRetentionDays)
	}
}

func TestLoadIgnoresBadRetention(t *testing.T) {
	for _, bad := range []string{"abc", "-5", "0"} {
		t.Setenv("APP_CALL_RETENTION_DAYS", bad)
		if cfg := Load(); cfg.CallRetentionDays != 365 {
			t.Errorf("CallRetentionDays with %q = %d, want default 365", bad, cfg.CallRetentionDays)
		}
	}
}
