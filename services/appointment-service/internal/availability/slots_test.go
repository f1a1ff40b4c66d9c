package availability

import (
	"testing"
	"time"
)

func TestAvailableSlots_Basic(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, loc)
	windowStart := time.Date(2026, 1, 28, 9, 0, 0, 0, loc)
	windowEnd := time.Date(2026, 1, 28, 10, 0, 0, 0, loc)

	busy := []Interval{
		{Start: day.Add(9*time.Hour + 15*time.Minute), End: day.Add(9*time.Hour + 45*time.Minute)},
	}

	slots := AvailableSlots(windowStart, windowEnd, 15*time.Minute, 15*time.Minute, busy, day)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Format(time.RFC3339))
	}
	if !slots[1].Equal(day.Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("expected second slot 09:45, got %s", slots[1].Format(time.RFC3339))
	}
}

func TestAvailableSlots_SkipsPast(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	now := day.Add(9*time.Hour + 31*time.Minute)
	slots := AvailableSlots(day.Add(9*time.Hour), day.Add(10*time.Hour), 15*time.Minute, 15*time.Minute, nil, now)
	if len(slots) != 1 || !slots[0].Equal(day.Add(9*time.Hour+45*time.Minute)) {
		t.Fatalf("expected only 09:45, got %v", slots)
	}
}

func TestIntervalOverlapsIsHalfOpen(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	showing := Interval{Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 30*time.Minute)}

	if showing.Overlaps(day.Add(9*time.Hour+30*time.Minute), day.Add(10*time.Hour)) {
		t.Fatalf("showing ending at 10:00 must not overlap one starting at 10:00")
	}
	if showing.Overlaps(day.Add(10*time.Hour+30*time.Minute), day.Add(11*time.Hour)) {
		t.Fatalf("showing starting at 10:30 must not overlap one ending at 10:30")
	}
	if !showing.Overlaps(day.Add(10*time.Hour+15*time.Minute), day.Add(10*time.Hour+45*time.Minute)) {
		t.Fatalf("10:15-10:45 overlaps 10:00-10:30")
	}
}

func TestDailySlots_Weekday(t *testing.T) {
	tuesday := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	labels := Labels(DailySlots(tuesday), "")
	if len(labels) != 16 {
		t.Fatalf("expected 16 weekday slots, got %d", len(labels))
	}
	if labels[0] != "9:00 AM" || labels[len(labels)-1] != "4:30 PM" {
		t.Fatalf("unexpected weekday range %s..%s", labels[0], labels[len(labels)-1])
	}
}

func TestDailySlots_Weekend(t *testing.T) {
	for _, day := range []time.Time{
		time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	} {
		labels := Labels(DailySlots(day), "")
		if len(labels) != 10 {
			t.Fatalf("%s: expected 10 weekend slots, got %d", day.Weekday(), len(labels))
		}
		if labels[0] != "10:00 AM" || labels[len(labels)-1] != "2:30 PM" {
			t.Fatalf("%s: unexpected weekend range %s..%s", day.Weekday(), labels[0], labels[len(labels)-1])
		}
		for _, l := range labels {
			if l == "9:00 AM" {
				t.Fatalf("9:00 AM must not be offered on %s", day.Weekday())
			}
		}
	}
}

func TestDailySlots_UsesDateLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// Friday 20:00 UTC is already Saturday in UTC+10.
	date := time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC).In(loc)
	if got := len(DailySlots(date)); got != 10 {
		t.Fatalf("expected weekend hours in local zone, got %d slots", got)
	}
}

func TestDailySlots_ZeroDate(t *testing.T) {
	if slots := DailySlots(time.Time{}); len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestOpenSlots_RemovesBooked(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	busy := []Interval{{Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 30*time.Minute)}}
	labels := Labels(OpenSlots(day, 30*time.Minute, busy), "")
	if len(labels) != 15 {
		t.Fatalf("expected 15 open slots, got %d", len(labels))
	}
	for _, l := range labels {
		if l == "10:00 AM" {
			t.Fatal("booked slot still offered")
		}
	}
}

func TestCombine(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	got, err := Combine(day, "10:00 AM", "")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !got.Equal(day.Add(10 * time.Hour)) {
		t.Fatalf("unexpected combined time %s", got)
	}
	if _, err := Combine(day, "ten o'clock", ""); err == nil {
		t.Fatal("expected parse error")
	}
}
