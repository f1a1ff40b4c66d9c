package agenda

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/estatehub/showings/services/appointment-service/internal/model"
	"github.com/jinzhu/now"
)

type Tab string

const (
	TabToday    Tab = "today"
	TabUpcoming Tab = "upcoming"
	TabPast     Tab = "past"
	TabAll      Tab = "all"
)

// StatusAll disables the status filter.
const StatusAll = "all"

func ParseTab(raw string) (Tab, error) {
	t := Tab(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case "":
		return TabAll, nil
	case TabToday, TabUpcoming, TabPast, TabAll:
		return t, nil
	}
	return "", fmt.Errorf("invalid tab %q", raw)
}

type Query struct {
	Search string
	// Status is one of the appointment statuses or StatusAll.
	Status string
	Tab    Tab
}

type Group struct {
	Key          string              `json:"key"`
	Label        string              `json:"label"`
	Date         time.Time           `json:"date"`
	Appointments []model.Appointment `json:"-"`
}

// View filters and groups an already fetched list. It never queries storage.
type View struct {
	cfg   *now.Config
	clock func() time.Time
}

func NewView(loc *time.Location, clock func() time.Time) *View {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &View{
		cfg:   &now.Config{WeekStartDay: time.Sunday, TimeLocation: loc},
		clock: clock,
	}
}

// Build applies q and groups what remains by local calendar day, earliest first.
func (v *View) Build(appts []model.Appointment, q Query) []Group {
	return v.Group(v.Filter(appts, q))
}

func (v *View) Filter(appts []model.Appointment, q Query) []model.Appointment {
	today := v.cfg.With(v.clock()).BeginningOfDay()
	tomorrow := today.AddDate(0, 0, 1)
	search := strings.ToLower(strings.TrimSpace(q.Search))
	status := strings.ToLower(strings.TrimSpace(q.Status))

	out := make([]model.Appointment, 0, len(appts))
	for _, a := range appts {
		if search != "" && !matches(a, search) {
			continue
		}
		if status != "" && status != StatusAll && string(a.Status) != status {
			continue
		}
		if !inTab(a, q.Tab, today, tomorrow) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func matches(a model.Appointment, search string) bool {
	if strings.Contains(strings.ToLower(a.ClientName), search) {
		return true
	}
	if a.Property == nil {
		return false
	}
	return strings.Contains(strings.ToLower(a.Property.Title), search) ||
		strings.Contains(strings.ToLower(a.Property.Address), search)
}

func inTab(a model.Appointment, tab Tab, today, tomorrow time.Time) bool {
	d := a.AppointmentDate
	switch tab {
	case TabToday:
		return !d.Before(today) && d.Before(tomorrow)
	case TabUpcoming:
		return !d.Before(today) && !a.Status.Terminal()
	case TabPast:
		return d.Before(today) || a.Status.Terminal()
	}
	return true
}

// Group buckets appointments by local date key. Groups are sorted ascending and
// appointments keep their relative input order within a group.
func (v *View) Group(appts []model.Appointment) []Group {
	loc := v.cfg.TimeLocation
	n := v.cfg.With(v.clock())
	today := n.BeginningOfDay()
	tomorrow := today.AddDate(0, 0, 1)
	weekStart, weekEnd := n.BeginningOfWeek(), n.EndOfWeek()

	index := map[string]int{}
	var groups []Group
	for _, a := range appts {
		local := a.AppointmentDate.In(loc)
		key := local.Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			y, m, d := local.Date()
			day := time.Date(y, m, d, 0, 0, 0, 0, loc)
			groups = append(groups, Group{Key: key, Label: label(day, today, tomorrow, weekStart, weekEnd), Date: day})
			i = len(groups) - 1
			index[key] = i
		}
		groups[i].Appointments = append(groups[i].Appointments, a)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date.Before(groups[j].Date) })
	return groups
}

func label(day, today, tomorrow, weekStart, weekEnd time.Time) string {
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(tomorrow):
		return "Tomorrow"
	case !day.Before(weekStart) && !day.After(weekEnd):
		return day.Weekday().String()
	}
	return day.Format("Jan 2, 2006")
}
