package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/estatehub/showings/libs/auth"
	"github.com/estatehub/showings/services/appointment-service/internal/availability"
	"github.com/estatehub/showings/services/appointment-service/internal/model"
)

type State int

const (
	StateLoadingProperty State = iota
	StateSelectingSlot
	StateEnteringContact
	StateSubmitting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoadingProperty:
		return "loading_property"
	case StateSelectingSlot:
		return "selecting_slot"
	case StateEnteringContact:
		return "entering_contact"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// BookingWindowDays is how many days ahead of today a showing may be booked.
const BookingWindowDays = 30

// ListingsPath is where the caller is sent when the property cannot be loaded.
const ListingsPath = "/properties"

var (
	ErrInvalidState     = errors.New("action not allowed in current state")
	ErrDateOutOfRange   = errors.New("date outside booking window")
	ErrSlotUnavailable  = errors.New("time not available")
	ErrMissingFields    = errors.New("missing required fields")
	ErrPropertyNotFound = errors.New("property unavailable")
	ErrSubmitFailed     = errors.New("booking failed")
)

type PropertyLoader interface {
	Property(ctx context.Context, id string) (model.Property, error)
}

type SlotSource interface {
	Slots(ctx context.Context, propertyID string, date time.Time) ([]string, error)
}

type AppointmentCreator interface {
	Create(ctx context.Context, in model.NewAppointment) (model.Appointment, error)
}

type Deps struct {
	Properties   PropertyLoader
	Slots        SlotSource // nil uses the plain daily schedule
	Appointments AppointmentCreator
	Notifier     Notifier
	// Identity pre-fills contact details and links the booking to the account.
	Identity *auth.Identity
	Location *time.Location
	Now      func() time.Time
}

type Contact struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// Confirmation is the summary shown once the booking has been stored.
type Confirmation struct {
	AppointmentID string `json:"appointment_id"`
	PropertyTitle string `json:"property_title"`
	Weekday       string `json:"weekday"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
}

// Flow drives one booking for one property. It is not safe for concurrent use.
type Flow struct {
	deps Deps

	state        State
	property     model.Property
	date         time.Time
	times        []string
	time         string
	contact      Contact
	confirmation *Confirmation
	redirect     string
}

func NewFlow(deps Deps) *Flow {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = &Collector{}
	}
	f := &Flow{deps: deps, state: StateLoadingProperty}
	if id := deps.Identity; id != nil {
		f.contact.Name = id.Name
		f.contact.Email = id.Email
	}
	return f
}

func (f *Flow) State() State { return f.state }
func (f *Flow) Property() model.Property { return f.property }
func (f *Flow) Date() time.Time { return f.date }
func (f *Flow) AvailableTimes() []string { return slices.Clone(f.times) }
func (f *Flow) SelectedTime() string { return f.time }
func (f *Flow) Contact() Contact { return f.contact }
func (f *Flow) Confirmation() *Confirmation { return f.confirmation }
func (f *Flow) Redirect() string { return f.redirect }

// Load fetches the property. Any failure, not found included, ends the flow
// with a redirect back to the listings.
func (f *Flow) Load(ctx context.Context, propertyID string) error {
	if f.state != StateLoadingProperty {
		return ErrInvalidState
	}
	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return f.failLoad(fmt.Errorf("%w: missing id", ErrPropertyNotFound))
	}
	p, err := f.deps.Properties.Property(ctx, propertyID)
	if err != nil {
		return f.failLoad(fmt.Errorf("%w: %w", ErrPropertyNotFound, err))
	}
	f.property = p
	f.state = StateSelectingSlot
	return nil
}

func (f *Flow) failLoad(err error) error {
	f.state = StateFailed
	f.redirect = ListingsPath
	f.deps.Notifier.Notify(LevelError, "Could not load property details")
	return err
}

// SelectDate picks a calendar day between today and BookingWindowDays ahead,
// recomputes the offered times and clears any previously chosen time.
func (f *Flow) SelectDate(ctx context.Context, date time.Time) error {
	if f.state != StateSelectingSlot && f.state != StateEnteringContact {
		return ErrInvalidState
	}
	loc := f.deps.Location
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	ny, nm, nd := f.deps.Now().In(loc).Date()
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, loc)
	last := today.AddDate(0, 0, BookingWindowDays)
	if date.IsZero() || day.Before(today) || day.After(last) {
		f.deps.Notifier.Notify(LevelError, "Please choose a date within the next 30 days")
		return ErrDateOutOfRange
	}

	times, err := f.slots(ctx, day)
	if err != nil {
		f.deps.Notifier.Notify(LevelError, "Could not load available times")
		return err
	}
	f.date = day
	f.times = times
	f.time = ""
	f.state = StateSelectingSlot
	return nil
}

func (f *Flow) slots(ctx context.Context, day time.Time) ([]string, error) {
	if f.deps.Slots == nil {
		return availability.Labels(availability.DailySlots(day), ""), nil
	}
	return f.deps.Slots.Slots(ctx, f.property.ID, day)
}

// SelectTime chooses one of the labels offered for the selected date.
func (f *Flow) SelectTime(label string) error {
	if f.state != StateSelectingSlot && f.state != StateEnteringContact {
		return ErrInvalidState
	}
	label = strings.TrimSpace(label)
	if !slices.Contains(f.times, label) {
		f.deps.Notifier.Notify(LevelError, "That time is not available")
		return ErrSlotUnavailable
	}
	f.time = label
	f.state = StateEnteringContact
	return nil
}

// SetContact overwrites the contact fields. Empty values keep pre-filled identity details.
func (f *Flow) SetContact(c Contact) {
	if v := strings.TrimSpace(c.Name); v != "" {
		f.contact.Name = v
	}
	if v := strings.TrimSpace(c.Email); v != "" {
		f.contact.Email = v
	}
	f.contact.Phone = strings.TrimSpace(c.Phone)
	f.contact.Message = strings.TrimSpace(c.Message)
}

// Submit validates and creates the appointment. Validation failures never reach the creator.
// A create failure keeps the form so the user can retry.
func (f *Flow) Submit(ctx context.Context) (model.Appointment, error) {
	if f.state != StateSelectingSlot && f.state != StateEnteringContact {
		return model.Appointment{}, ErrInvalidState
	}
	if missing := f.missingFields(); len(missing) > 0 {
		f.deps.Notifier.Notify(LevelError, "Please fill in all required fields")
		return model.Appointment{}, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	at, err := availability.Combine(f.date, f.time, "")
	if err != nil {
		f.deps.Notifier.Notify(LevelError, "That time is not available")
		return model.Appointment{}, fmt.Errorf("%w: %w", ErrSlotUnavailable, err)
	}

	in := model.NewAppointment{
		PropertyID:      f.property.ID,
		AgentID:         f.property.AgentID,
		ClientName:      f.contact.Name,
		ClientEmail:     f.contact.Email,
		ClientPhone:     f.contact.Phone,
		AppointmentDate: at,
		Type:            model.TypeShowing,
		Notes:           f.contact.Message,
	}
	if id := f.deps.Identity; id != nil {
		in.UserID = id.UserID
	}

	f.state = StateSubmitting
	appt, err := f.deps.Appointments.Create(ctx, in)
	if err != nil {
		f.state = StateEnteringContact
		f.deps.Notifier.Notify(LevelError, "Failed to schedule appointment. Please try again.")
		return model.Appointment{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	local := appt.AppointmentDate.In(f.deps.Location)
	f.confirmation = &Confirmation{
		AppointmentID: appt.ID,
		PropertyTitle: f.property.Title,
		Weekday:       local.Weekday().String(),
		Date:          local.Format("January 2, 2006"),
		Time:          appt.AppointmentTime("", f.deps.Location),
		Status:        string(appt.Status),
	}
	f.state = StateSuccess
	f.deps.Notifier.Notify(LevelSuccess, "Appointment scheduled successfully")
	return appt, nil
}

func (f *Flow) missingFields() []string {
	var missing []string
	if f.date.IsZero() {
		missing = append(missing, "date")
	}
	if f.time == "" {
		missing = append(missing, "time")
	}
	if f.contact.Name == "" {
		missing = append(missing, "name")
	}
	if f.contact.Email == "" {
		missing = append(missing, "email")
	}
	return missing
}
