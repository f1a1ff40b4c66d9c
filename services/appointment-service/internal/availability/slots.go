package availability

import "time"

// Interval is a half-open [Start, End) span, typically an existing showing.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) shares any instant with i.
// Back-to-back showings do not overlap.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && i.Start.Before(end)
}

// AvailableSlots walks the opening window in step increments and keeps every start
// whose showing of length duration fits before windowEnd and clears busy.
// Starts before now are dropped; a zero now keeps the whole day.
//
// Window bounds, busy intervals and now must share one location.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 || !windowEnd.After(windowStart) {
		return nil
	}

	var slots []time.Time
	for start := windowStart; ; start = start.Add(step) {
		end := start.Add(duration)
		if end.After(windowEnd) {
			break
		}
		if start.Before(now) || conflicts(start, end, busy) {
			continue
		}
		slots = append(slots, start)
	}
	return slots
}

func conflicts(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
