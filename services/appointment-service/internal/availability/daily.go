package availability

import (
	"time"

	"github.com/estatehub/showings/services/appointment-service/internal/model"
)

// SlotStep is the spacing between bookable showing starts.
const SlotStep = 30 * time.Minute

// Hours is an opening window expressed as wall-clock hours of the local day.
type Hours struct {
	Open  int
	Close int
}

var (
	WeekdayHours = Hours{Open: 9, Close: 17}
	WeekendHours = Hours{Open: 10, Close: 15}
)

func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func HoursFor(date time.Time) Hours {
	if IsWeekend(date) {
		return WeekendHours
	}
	return WeekdayHours
}

// Window returns the opening window of date's calendar day in date's own location.
func Window(date time.Time) (time.Time, time.Time) {
	h := HoursFor(date)
	y, m, d := date.Date()
	loc := date.Location()
	return time.Date(y, m, d, h.Open, 0, 0, 0, loc), time.Date(y, m, d, h.Close, 0, 0, 0, loc)
}

// DailySlots lists the half-hour showing starts for date's calendar day.
// A zero date yields no slots. Existing bookings are not consulted.
func DailySlots(date time.Time) []time.Time {
	if date.IsZero() {
		return nil
	}
	start, end := Window(date)
	return AvailableSlots(start, end, SlotStep, SlotStep, nil, time.Time{})
}

// OpenSlots is DailySlots minus the starts whose showing of length would overlap busy.
func OpenSlots(date time.Time, length time.Duration, busy []Interval) []time.Time {
	if date.IsZero() {
		return nil
	}
	if length <= 0 {
		length = SlotStep
	}
	start, end := Window(date)
	slots := AvailableSlots(start, end, SlotStep, SlotStep, nil, time.Time{})
	free := slots[:0:0]
	for _, s := range slots {
		if !conflicts(s, s.Add(length), busy) {
			free = append(free, s)
		}
	}
	return free
}

// Labels renders slot starts as clock strings, model.DefaultTimeLayout when layout is empty.
func Labels(slots []time.Time, layout string) []string {
	if layout == "" {
		layout = model.DefaultTimeLayout
	}
	labels := make([]string, 0, len(slots))
	for _, s := range slots {
		labels = append(labels, s.Format(layout))
	}
	return labels
}

// Combine joins the calendar day of date with a clock label produced by Labels.
func Combine(date time.Time, label, layout string) (time.Time, error) {
	if layout == "" {
		layout = model.DefaultTimeLayout
	}
	clock, err := time.Parse(layout, label)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, date.Location()), nil
}
