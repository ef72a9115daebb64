package calendar

import (
	"slices"
	"testing"
	"time"
)

func TestRange(t *testing.T) {
	days, err := Range("2026-02-27", "2026-03-02")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := []string{"2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02"}
	if !slices.Equal(days, want) {
		t.Fatalf("got %v, want %v", days, want)
	}
}

func TestRangeInverted(t *testing.T) {
	days, err := Range("2026-03-02", "2026-03-01")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(days) != 0 {
		t.Fatalf("expected empty range, got %v", days)
	}
}

func TestRangeInvalid(t *testing.T) {
	if _, err := Range("2026-13-01", "2026-03-01"); err == nil {
		t.Fatalf("expected error for invalid date")
	}
}

func TestAddDays(t *testing.T) {
	got, err := AddDays("2026-01-01", -1)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got != "2025-12-31" {
		t.Fatalf("got %s", got)
	}
}

func TestYesterdayInSeoul(t *testing.T) {
	// 2026-03-01 20:00 UTC is already 2026-03-02 in Seoul.
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	got, err := Yesterday(now, "Asia/Seoul")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got != "2026-03-01" {
		t.Fatalf("got %s, want 2026-03-01", got)
	}
}
