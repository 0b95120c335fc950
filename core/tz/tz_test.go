package tz

import (
	"strings"
	"testing"
	"time"
)

func TestConvert(t *testing.T) {
	ts := time.Date(2026, 7, 1, 12, 0, 0, 250_000_000, time.UTC)
	tests := []struct {
		name string
		want string
	}{
		{"UTC", "2026-07-01T12:00:00.250000+00:00"},
		{"America/New_York", "2026-07-01T08:00:00.250000-04:00"},
		{"Asia/Kolkata", "2026-07-01T17:30:00.250000+05:30"},
		{"Europe/Zurich", "2026-07-01T14:00:00.250000+02:00"},
	}
	for _, tt := range tests {
		got, err := Convert(ts, tt.name)
		if err != nil {
			t.Errorf("Convert(%q) failed: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Convert(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestConvertUnknownZone(t *testing.T) {
	ts := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	for _, name := range []string{"", "Invalid/Zone", "Mars/Olympus_Mons"} {
		got, err := Convert(ts, name)
		if err == nil {
			t.Errorf("Convert(%q) = %q, want error", name, got)
		}
	}
	_, err := Convert(ts, "Invalid/Zone")
	if err == nil || !strings.Contains(err.Error(), "Invalid/Zone") {
		t.Errorf("Convert error = %v, want mention of the zone name", err)
	}
}

func TestLookup(t *testing.T) {
	summer := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	info, err := Lookup(summer, "Europe/London")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if info.Abbreviation != "BST" || info.OffsetSeconds != 3600 || !info.DST {
		t.Errorf("Lookup(summer) = %+v, want BST +3600 DST", info)
	}

	winter := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	info, err = Lookup(winter, "Europe/London")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if info.Abbreviation != "GMT" || info.OffsetSeconds != 0 || info.DST {
		t.Errorf("Lookup(winter) = %+v, want GMT +0 no DST", info)
	}
	if info.LocalTime != "2026-01-15T12:00:00.000000+00:00" {
		t.Errorf("LocalTime = %q", info.LocalTime)
	}
}
