// Package dispatch turns appointment events into client emails.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/estatehub/showings/libs/events"
	"github.com/estatehub/showings/libs/kafkax"
	"github.com/estatehub/showings/services/notification-service/internal/email"
	"github.com/estatehub/showings/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

const channelEmail = "email"

type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Handler struct {
	sender   email.Sender
	recorder Recorder
	logger   *slog.Logger
	loc      *time.Location
}

func NewHandler(sender email.Sender, recorder Recorder, logger *slog.Logger, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{sender: sender, recorder: recorder, logger: logger, loc: loc}
}

// Handle is a consumer.Handler. Malformed payloads are logged and dropped;
// only persistence failures are returned so the event can be retried.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	eventType := kafkax.ExtractEventMeta(msg).EventType

	var p events.AppointmentPayload
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		h.logger.Error("invalid appointment payload", "err", err, "event_type", eventType)
		return nil
	}
	if p.AppointmentID == "" || p.AppointmentDate.IsZero() {
		h.logger.Error("missing appointment fields", "event_type", eventType)
		return nil
	}

	switch eventType {
	case events.TopicAppointmentBooked, events.TopicAppointmentStatusChanged:
	default:
		return nil
	}

	n := storage.Notification{
		AppointmentID: p.AppointmentID,
		EventType:     eventType,
		Channel:       channelEmail,
		Recipient:     p.ClientEmail,
		Provider:      h.sender.ProviderID(),
		Payload: map[string]any{
			"status":          p.Status,
			"previous_status": p.PreviousStatus,
			"property_title":  p.PropertyTitle,
		},
	}

	n.Status = storage.StatusSkipped
	if message, ok := email.Compose(eventType, p, h.loc); ok {
		n.Payload["subject"] = message.Subject
		n.Status = storage.StatusSent
		if err := h.sender.Send(ctx, message); err != nil {
			h.logger.Error("email send failed", "err", err, "appointment_id", p.AppointmentID, "provider", n.Provider)
			n.Status = storage.StatusFailed
			n.Error = err.Error()
		}
	}

	if err := h.recorder.Insert(ctx, n); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	h.logger.Info("appointment event processed", "appointment_id", p.AppointmentID, "event_type", eventType, "status", n.Status)
	return nil
}
