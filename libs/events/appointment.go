package events

import "time"

// Topic names double as event types: one event per topic.
const (
	TopicAppointmentBooked        = "appointment.booked.v1"
	TopicAppointmentStatusChanged = "appointment.status_changed.v1"
	TopicAppointmentNotesUpdated  = "appointment.notes_updated.v1"
	TopicAppointmentDeleted       = "appointment.deleted.v1"

	AggregateAppointment = "appointment"
)

// AppointmentTopics lists every topic the appointment service publishes.
func AppointmentTopics() []string {
	return []string{
		TopicAppointmentBooked,
		TopicAppointmentStatusChanged,
		TopicAppointmentNotesUpdated,
		TopicAppointmentDeleted,
	}
}

// AppointmentPayload is the JSON body shared by all appointment events.
type AppointmentPayload struct {
	AppointmentID   string    `json:"appointment_id"`
	PropertyID      string    `json:"property_id"`
	PropertyTitle   string    `json:"property_title,omitempty"`
	AgentID         string    `json:"agent_id"`
	ClientName      string    `json:"client_name"`
	ClientEmail     string    `json:"client_email,omitempty"`
	AppointmentDate time.Time `json:"appointment_date"`
	Status          string    `json:"status"`
	PreviousStatus  string    `json:"previous_status,omitempty"`
	Type            string    `json:"type"`
	Notes           string    `json:"notes,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
