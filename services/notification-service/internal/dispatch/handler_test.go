package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/estatehub/showings/libs/events"
	"github.com/estatehub/showings/services/notification-service/internal/email"
	"github.com/estatehub/showings/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []email.Message
	err  error
}

func (f *fakeSender) ProviderID() string { return "fake" }

func (f *fakeSender) Send(_ context.Context, msg email.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeRecorder struct {
	rows []storage.Notification
	err  error
}

func (f *fakeRecorder) Insert(_ context.Context, n storage.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, n)
	return nil
}

func eventMessage(t *testing.T, topic string, p events.AppointmentPayload) kafka.Message {
	t.Helper()
	body, err := json.Marshal(p)
	require.NoError(t, err)
	return kafka.Message{Topic: topic, Key: []byte(p.AppointmentID), Value: body}
}

func booked() events.AppointmentPayload {
	return events.AppointmentPayload{
		AppointmentID:   "appt-1",
		PropertyTitle:   "Harbor View",
		ClientName:      "Sam Lee",
		ClientEmail:     "sam@example.com",
		AppointmentDate: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		Status:          "pending",
	}
}

func newHandler(s *fakeSender, r *fakeRecorder) *Handler {
	return NewHandler(s, r, slog.New(slog.NewTextHandler(io.Discard, nil)), time.UTC)
}

func TestHandleBookedSendsAndRecords(t *testing.T) {
	sender, rec := &fakeSender{}, &fakeRecorder{}
	err := newHandler(sender, rec).Handle(context.Background(), eventMessage(t, events.TopicAppointmentBooked, booked()))
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	require.Equal(t, "sam@example.com", sender.sent[0].To)
	require.Len(t, rec.rows, 1)
	require.Equal(t, storage.StatusSent, rec.rows[0].Status)
	require.Equal(t, "fake", rec.rows[0].Provider)
	require.Equal(t, events.TopicAppointmentBooked, rec.rows[0].EventType)
}

func TestHandleSendFailureIsRecorded(t *testing.T) {
	sender, rec := &fakeSender{err: errors.New("relay refused")}, &fakeRecorder{}
	err := newHandler(sender, rec).Handle(context.Background(), eventMessage(t, events.TopicAppointmentBooked, booked()))
	require.NoError(t, err)
	require.Len(t, rec.rows, 1)
	require.Equal(t, storage.StatusFailed, rec.rows[0].Status)
	require.Equal(t, "relay refused", rec.rows[0].Error)
}

func TestHandleWithoutEmailIsSkipped(t *testing.T) {
	p := booked()
	p.ClientEmail = ""
	sender, rec := &fakeSender{}, &fakeRecorder{}
	require.NoError(t, newHandler(sender, rec).Handle(context.Background(), eventMessage(t, events.TopicAppointmentBooked, p)))
	require.Empty(t, sender.sent)
	require.Len(t, rec.rows, 1)
	require.Equal(t, storage.StatusSkipped, rec.rows[0].Status)
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	sender, rec := &fakeSender{}, &fakeRecorder{}
	h := newHandler(sender, rec)
	require.NoError(t, h.Handle(context.Background(), eventMessage(t, events.TopicAppointmentNotesUpdated, booked())))
	require.NoError(t, h.Handle(context.Background(), kafka.Message{Topic: events.TopicAppointmentBooked, Value: []byte("{not json")}))
	require.Empty(t, sender.sent)
	require.Empty(t, rec.rows)
}

func TestHandleReturnsRecorderError(t *testing.T) {
	sender, rec := &fakeSender{}, &fakeRecorder{err: errors.New("db down")}
	err := newHandler(sender, rec).Handle(context.Background(), eventMessage(t, events.TopicAppointmentStatusChanged, func() events.AppointmentPayload {
		p := booked()
		p.Status, p.PreviousStatus = "confirmed", "pending"
		return p
	}()))
	require.Error(t, err)
	require.Len(t, sender.sent, 1)
}
