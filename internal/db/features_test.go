package db

import (
	"testing"
	"time"
)

func TestDedupeByClientEmail(t *testing.T) {
	records := []ClientFeature{
		{ClientEmail: "a@x.com", FeatureCount: 1},
		{ClientEmail: "b@x.com", FeatureCount: 2},
		{ClientEmail: "a@x.com", FeatureCount: 3},
		{ClientEmail: "c@x.com", FeatureCount: 4},
	}

	got := DedupeByClientEmail(records)

	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	wantEmails := []string{"a@x.com", "b@x.com", "c@x.com"}
	for i, email := range wantEmails {
		if got[i].ClientEmail != email {
			t.Errorf("records[%d] = %q, want %q", i, got[i].ClientEmail, email)
		}
	}
	if got[0].FeatureCount != 3 {
		t.Errorf("duplicate kept FeatureCount %d, want 3 (last occurrence wins)", got[0].FeatureCount)
	}
}

func TestDedupeByClientEmailEmpty(t *testing.T) {
	if got := DedupeByClientEmail(nil); len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}

func TestSplitBatches(t *testing.T) {
	mk := func(n int) []ClientFeature { return make([]ClientFeature, n) }

	tests := []struct {
		name      string
		records   []ClientFeature
		wantSizes []int
	}{
		{"empty", nil, nil},
		{"under one batch", mk(10), []int{10}},
		{"exactly one batch", mk(UpsertBatchSize), []int{UpsertBatchSize}},
		{"one row over", mk(UpsertBatchSize + 1), []int{UpsertBatchSize, 1}},
		{"several batches", mk(120), []int{50, 50, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := splitBatches(tt.records, UpsertBatchSize)
			if len(batches) != len(tt.wantSizes) {
				t.Fatalf("got %d batches, want %d", len(batches), len(tt.wantSizes))
			}
			for i, want := range tt.wantSizes {
				if len(batches[i]) != want {
					t.Errorf("batch %d has %d rows, want %d", i, len(batches[i]), want)
				}
			}
		})
	}
}

func TestFeatureVectorFieldCount(t *testing.T) {
	if got := (FeatureVector{}).FieldCount(); got != 34 {
		t.Errorf("FieldCount() = %d, want 34", got)
	}
}

func TestDealValuePrefersAmount(t *testing.T) {
	tests := []struct {
		name string
		deal Deal
		want float64
	}{
		{"amount set", Deal{Amount: 100, DealValue: 50}, 100},
		{"amount zero falls back", Deal{DealValue: 50}, 50},
		{"both zero", Deal{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.deal.Value(); got != tt.want {
				t.Errorf("Value() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	want := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	if got := retentionCutoff(now, 365); !got.Equal(want) {
		t.Errorf("retentionCutoff(365d) = %v, want %v", got, want)
	}
}
