package selector

import (
	"errors"
	"testing"

	"tml-rank-card/config"
	"tml-rank-card/models"
)

func TestSelect(t *testing.T) {
	records := models.RecordSet{
		{DisplayName: "Alice", RankTotal: "1", DownloadsTotal: "1000", DownloadsYesterday: "10"},
		{DisplayName: "Bob", RankTotal: "2", DownloadsTotal: "500", DownloadsYesterday: "5"},
	}

	tests := []struct {
		name    string
		mode    string
		fixed   string
		records models.RecordSet
		want    string
		wantErr error
	}{
		{"top record", config.TextModeTopRecord, "", records, "Alice", nil},
		{"default mode is top record", "", "", records, "Alice", nil},
		{"top record of empty set", config.TextModeTopRecord, "", models.RecordSet{}, "", ErrNoRecords},
		{"fixed ignores records", config.TextModeFixed, "My Mods", records, "My Mods", nil},
		{"fixed with empty set", config.TextModeFixed, "My Mods", nil, "My Mods", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.GetDefaultConfig()
			cfg.Text.Mode = tt.mode
			cfg.Text.Fixed = tt.fixed

			got, err := NewSelector(cfg).Select(tt.records)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Select() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Select() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelect_UnknownMode(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Text.Mode = "random"
	if _, err := NewSelector(cfg).Select(nil); err == nil {
		t.Error("Select() with unknown mode should fail")
	}
}
