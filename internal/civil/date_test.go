package civil

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStartOfWeek(t *testing.T) {
	// 2024-05-15 is a Wednesday.
	d := MustParse("2024-05-15")

	if got := d.StartOfWeek(time.Monday).String(); got != "2024-05-13" {
		t.Fatalf("monday start = %s, want 2024-05-13", got)
	}
	if got := d.StartOfWeek(time.Sunday).String(); got != "2024-05-12" {
		t.Fatalf("sunday start = %s, want 2024-05-12", got)
	}
	if got := d.StartOfWeek(time.Wednesday).String(); got != "2024-05-15" {
		t.Fatalf("wednesday start = %s, want 2024-05-15", got)
	}
}

func TestDaysSinceAcrossMonthEnd(t *testing.T) {
	start := MustParse("2024-02-26")
	end := start.AddDays(6)

	if end.String() != "2024-03-03" {
		t.Fatalf("AddDays(6) = %s, want 2024-03-03", end)
	}
	if got := end.DaysSince(start); got != 6 {
		t.Fatalf("DaysSince = %d, want 6", got)
	}
	if got := start.AddDays(-1).DaysSince(start); got != -1 {
		t.Fatalf("DaysSince of the day before = %d, want -1", got)
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	var payload struct {
		Date Date `json:"date"`
	}
	if err := json.Unmarshal([]byte(`{"date":"2024-01-08"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Date != NewDate(2024, time.January, 8) {
		t.Fatalf("unexpected date %s", payload.Date)
	}

	if err := json.Unmarshal([]byte(`{"date":"08/01/2024"}`), &payload); err == nil {
		t.Fatalf("expected error for non-ISO date")
	}
}
