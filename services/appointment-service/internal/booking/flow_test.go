package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/estatehub/showings/libs/auth"
	"github.com/estatehub/showings/services/appointment-service/internal/model"
)

type stubProperties struct {
	props map[string]model.Property
	err   error
}

func (s stubProperties) Property(_ context.Context, id string) (model.Property, error) {
	if s.err != nil {
		return model.Property{}, s.err
	}
	p, ok := s.props[id]
	if !ok {
		return model.Property{}, errors.New("not found")
	}
	return p, nil
}

type stubCreator struct {
	calls []model.NewAppointment
	err   error
}

func (s *stubCreator) Create(_ context.Context, in model.NewAppointment) (model.Appointment, error) {
	s.calls = append(s.calls, in)
	if s.err != nil {
		return model.Appointment{}, s.err
	}
	return model.Appointment{
		ID:              "appt-1",
		PropertyID:      in.PropertyID,
		AgentID:         in.AgentID,
		ClientName:      in.ClientName,
		ClientEmail:     in.ClientEmail,
		AppointmentDate: in.AppointmentDate,
		Status:          model.StatusPending,
		Type:            in.Type,
		Notes:           in.Notes,
	}, nil
}

// Monday 2026-03-09 08:00 UTC.
var fixedNow = func() time.Time { return time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC) }

func newFlow(creator *stubCreator, notifier *Collector, identity *auth.Identity) *Flow {
	return NewFlow(Deps{
		Properties: stubProperties{props: map[string]model.Property{
			"prop-1": {ID: "prop-1", Title: "Downtown Loft", AgentID: "agent-1"},
		}},
		Appointments: creator,
		Notifier:     notifier,
		Identity:     identity,
		Now:          fixedNow,
	})
}

func hasNotice(c *Collector, level Level) bool {
	for _, n := range c.Notices() {
		if n.Level == level {
			return true
		}
	}
	return false
}

func TestFlowHappyPath(t *testing.T) {
	creator := &stubCreator{}
	notices := &Collector{}
	f := newFlow(creator, notices, nil)
	ctx := context.Background()

	if err := f.Load(ctx, "prop-1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.State() != StateSelectingSlot {
		t.Fatalf("expected selecting_slot, got %s", f.State())
	}
	tuesday := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if err := f.SelectDate(ctx, tuesday); err != nil {
		t.Fatalf("select date: %v", err)
	}
	if len(f.AvailableTimes()) != 16 {
		t.Fatalf("expected 16 weekday times, got %d", len(f.AvailableTimes()))
	}
	if err := f.SelectTime("10:00 AM"); err != nil {
		t.Fatalf("select time: %v", err)
	}
	f.SetContact(Contact{Name: "Jane Doe", Email: "jane@x.com", Message: "Is parking included?"})

	appt, err := f.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(creator.calls) != 1 {
		t.Fatalf("expected one create call, got %d", len(creator.calls))
	}
	in := creator.calls[0]
	if !in.AppointmentDate.Equal(tuesday.Add(10*time.Hour)) || in.Type != model.TypeShowing || in.AgentID != "agent-1" {
		t.Fatalf("unexpected create input %+v", in)
	}
	if in.Notes != "Is parking included?" {
		t.Fatalf("expected message mapped to notes, got %q", in.Notes)
	}
	if appt.Status != model.StatusPending || f.State() != StateSuccess {
		t.Fatalf("unexpected result status=%s state=%s", appt.Status, f.State())
	}
	c := f.Confirmation()
	if c == nil || c.Weekday != "Tuesday" || c.Time != "10:00 AM" || c.Status != "pending" || c.Date != "March 10, 2026" {
		t.Fatalf("unexpected confirmation %+v", c)
	}
	if !hasNotice(notices, LevelSuccess) {
		t.Fatal("expected success notice")
	}
}

func TestFlowLoadFailureRedirects(t *testing.T) {
	notices := &Collector{}
	f := newFlow(&stubCreator{}, notices, nil)

	err := f.Load(context.Background(), "missing")
	if !errors.Is(err, ErrPropertyNotFound) {
		t.Fatalf("expected ErrPropertyNotFound, got %v", err)
	}
	if f.State() != StateFailed || f.Redirect() != ListingsPath {
		t.Fatalf("expected failed state with redirect, got %s %q", f.State(), f.Redirect())
	}
	if !hasNotice(notices, LevelError) {
		t.Fatal("expected error notice")
	}
}

func TestFlowWeekendOffersNoNineAM(t *testing.T) {
	f := newFlow(&stubCreator{}, &Collector{}, nil)
	ctx := context.Background()
	_ = f.Load(ctx, "prop-1")

	saturday := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if err := f.SelectDate(ctx, saturday); err != nil {
		t.Fatalf("select date: %v", err)
	}
	times := f.AvailableTimes()
	if times[0] != "10:00 AM" || times[len(times)-1] != "2:30 PM" {
		t.Fatalf("unexpected weekend range %v", times)
	}
	if err := f.SelectTime("9:00 AM"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestFlowDateChangeClearsTime(t *testing.T) {
	f := newFlow(&stubCreator{}, &Collector{}, nil)
	ctx := context.Background()
	_ = f.Load(ctx, "prop-1")
	_ = f.SelectDate(ctx, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	_ = f.SelectTime("9:00 AM")

	if err := f.SelectDate(ctx, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("select date: %v", err)
	}
	if f.SelectedTime() != "" || f.State() != StateSelectingSlot {
		t.Fatalf("expected cleared time, got %q in %s", f.SelectedTime(), f.State())
	}
}

func TestFlowDateBounds(t *testing.T) {
	f := newFlow(&stubCreator{}, &Collector{}, nil)
	ctx := context.Background()
	_ = f.Load(ctx, "prop-1")

	if err := f.SelectDate(ctx, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrDateOutOfRange) {
		t.Fatalf("expected yesterday rejected, got %v", err)
	}
	if err := f.SelectDate(ctx, time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrDateOutOfRange) {
		t.Fatalf("expected day 31 rejected, got %v", err)
	}
	if err := f.SelectDate(ctx, time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("expected day 30 accepted, got %v", err)
	}
	if err := f.SelectDate(ctx, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("expected today accepted, got %v", err)
	}
}

func TestFlowSubmitValidationSkipsCreate(t *testing.T) {
	creator := &stubCreator{}
	notices := &Collector{}
	f := newFlow(creator, notices, nil)
	ctx := context.Background()
	_ = f.Load(ctx, "prop-1")
	_ = f.SelectDate(ctx, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	_ = f.SelectTime("10:00 AM")
	f.SetContact(Contact{Name: "Jane Doe"})

	if _, err := f.Submit(ctx); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if len(creator.calls) != 0 {
		t.Fatal("create must not be called on validation failure")
	}
	if !hasNotice(notices, LevelError) {
		t.Fatal("expected error notice")
	}
}

func TestFlowSubmitFailureStaysInForm(t *testing.T) {
	creator := &stubCreator{err: errors.New("db down")}
	f := newFlow(creator, &Collector{}, nil)
	ctx := context.Background()
	_ = f.Load(ctx, "prop-1")
	_ = f.SelectDate(ctx, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	_ = f.SelectTime("10:00 AM")
	f.SetContact(Contact{Name: "Jane", Email: "jane@x.com"})

	if _, err := f.Submit(ctx); !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("expected ErrSubmitFailed, got %v", err)
	}
	if f.State() != StateEnteringContact || f.SelectedTime() != "10:00 AM" {
		t.Fatalf("expected form state kept, got %s %q", f.State(), f.SelectedTime())
	}
}

func TestFlowIdentityPrefill(t *testing.T) {
	creator := &stubCreator{}
	id := &auth.Identity{UserID: "user-9", Email: "sam@x.com", Name: "Sam"}
	f := newFlow(creator, &Collector{}, id)
	ctx := context.Background()
	_ = f.Load(ctx, "prop-1")
	_ = f.SelectDate(ctx, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	_ = f.SelectTime("11:30 AM")

	if _, err := f.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	in := creator.calls[0]
	if in.ClientName != "Sam" || in.ClientEmail != "sam@x.com" || in.UserID != "user-9" {
		t.Fatalf("expected identity prefill, got %+v", in)
	}
}
