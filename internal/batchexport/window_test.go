package batchexport

import (
	"testing"
	"time"
)

func TestJSTDayRange(t *testing.T) {
	// 2025-06-02 14:59 UTC is 23:59 JST, still June 2nd in Japan.
	at := time.Date(2025, 6, 2, 14, 59, 0, 0, time.UTC)
	start, end := JSTDayRange(at)

	wantStart := time.Date(2025, 6, 2, 0, 0, 0, 0, JST)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	wantEnd := time.Date(2025, 6, 2, 23, 59, 59, 999000000, JST)
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestJSTDayRangeCrossesUTCMidnight(t *testing.T) {
	// 2025-06-02 15:00 UTC is already 00:00 JST June 3rd.
	at := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	start, _ := JSTDayRange(at)

	wantStart := time.Date(2025, 6, 3, 0, 0, 0, 0, JST)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if got := DateKey(at); got != "2025-06-03" {
		t.Errorf("DateKey = %q, want 2025-06-03", got)
	}
}

func TestDateKeyStableAcrossZones(t *testing.T) {
	// The same instant expressed in different zones keys to the same JST day.
	utc := time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC)
	ny := utc.In(time.FixedZone("EST", -5*3600))
	if DateKey(utc) != DateKey(ny) {
		t.Errorf("DateKey differs across zones: %q vs %q", DateKey(utc), DateKey(ny))
	}
	if DateKey(utc) != "2025-06-03" {
		t.Errorf("DateKey = %q", DateKey(utc))
	}
}
