package agenda

import (
	"testing"
	"time"

	"github.com/estatehub/showings/services/appointment-service/internal/model"
	"github.com/stretchr/testify/require"
)

// Wednesday 2026-03-11 14:00 UTC.
func clock() time.Time { return time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC) }

func appt(id string, date time.Time, status model.Status, title, address, client string) model.Appointment {
	return model.Appointment{
		ID:              id,
		AppointmentDate: date,
		Status:          status,
		ClientName:      client,
		Property:        &model.PropertySummary{Title: title, Address: address},
	}
}

func fixture() []model.Appointment {
	return []model.Appointment{
		appt("yesterday-confirmed", time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), model.StatusConfirmed, "Lake House", "9 Shore Rd", "Ann"),
		appt("today-pending", time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), model.StatusPending, "Downtown Loft", "1 Main St", "Bob"),
		appt("tomorrow-cancelled", time.Date(2026, 3, 12, 11, 0, 0, 0, time.UTC), model.StatusCancelled, "Suburb Home", "4 Downtown Ave", "Cy"),
		appt("saturday-confirmed", time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), model.StatusConfirmed, "Farm", "7 Rural Rd", "Dee"),
		appt("next-month", time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC), model.StatusPending, "Penthouse", "2 Tower St", "Eve"),
		appt("today-later", time.Date(2026, 3, 11, 16, 0, 0, 0, time.UTC), model.StatusConfirmed, "Cabin", "3 Woods Ln", "Fay"),
	}
}

func ids(appts []model.Appointment) []string {
	out := make([]string, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.ID)
	}
	return out
}

func TestTabs(t *testing.T) {
	v := NewView(time.UTC, clock)

	require.Equal(t, []string{"today-pending", "today-later"}, ids(v.Filter(fixture(), Query{Tab: TabToday})))
	require.Equal(t, []string{"today-pending", "saturday-confirmed", "next-month", "today-later"}, ids(v.Filter(fixture(), Query{Tab: TabUpcoming})))
	require.Equal(t, []string{"yesterday-confirmed", "tomorrow-cancelled"}, ids(v.Filter(fixture(), Query{Tab: TabPast})))
	require.Len(t, v.Filter(fixture(), Query{Tab: TabAll}), 6)
}

func TestSearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	v := NewView(time.UTC, clock)

	got := ids(v.Filter(fixture(), Query{Search: "downtown", Tab: TabAll}))
	require.Equal(t, []string{"today-pending", "tomorrow-cancelled"}, got)

	got = ids(v.Filter(fixture(), Query{Search: "EVE"}))
	require.Equal(t, []string{"next-month"}, got)
}

func TestStatusFilter(t *testing.T) {
	v := NewView(time.UTC, clock)

	require.Len(t, v.Filter(fixture(), Query{Status: "confirmed"}), 3)
	require.Len(t, v.Filter(fixture(), Query{Status: StatusAll}), 6)
	require.Empty(t, v.Build(fixture(), Query{Status: "completed"}))
}

func TestGroupLabelsAndOrder(t *testing.T) {
	v := NewView(time.UTC, clock)

	groups := v.Build(fixture(), Query{})
	var labels []string
	for _, g := range groups {
		labels = append(labels, g.Label)
	}
	require.Equal(t, []string{"Tuesday", "Today", "Tomorrow", "Saturday", "Apr 2, 2026"}, labels)
	require.Equal(t, []string{"today-pending", "today-later"}, ids(groups[1].Appointments))
}

func TestGroupingIsStableAcrossInputOrder(t *testing.T) {
	v := NewView(time.UTC, clock)
	list := fixture()
	reversed := make([]model.Appointment, len(list))
	for i, a := range list {
		reversed[len(list)-1-i] = a
	}

	a, b := v.Group(list), v.Group(reversed)
	require.Len(t, b, len(a))
	for i := range a {
		require.Equal(t, a[i].Key, b[i].Key)
		require.ElementsMatch(t, ids(a[i].Appointments), ids(b[i].Appointments))
	}
}

func TestGroupUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	v := NewView(loc, clock)

	// 02:00 UTC on the 12th is still the 11th in UTC-5.
	groups := v.Group([]model.Appointment{appt("late", time.Date(2026, 3, 12, 2, 0, 0, 0, time.UTC), model.StatusPending, "", "", "")})
	require.Len(t, groups, 1)
	require.Equal(t, "2026-03-11", groups[0].Key)
	require.Equal(t, "Today", groups[0].Label)
}

func TestParseTab(t *testing.T) {
	tab, err := ParseTab("")
	require.NoError(t, err)
	require.Equal(t, TabAll, tab)

	_, err = ParseTab("someday")
	require.Error(t, err)
}
