package storage

import (
	"context"
	"encoding/json"

	"github.com/estatehub/showings/libs/db"
)

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type Notification struct {
	AppointmentID string
	EventType     string
	Channel       string
	Recipient     string
	Provider      string
	Payload       map[string]any
	Status        string
	Error         string
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	if n.Payload == nil {
		n.Payload = map[string]any{}
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO notifications (appointment_id, event_type, channel, recipient, provider, payload, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
	`, n.AppointmentID, n.EventType, n.Channel, n.Recipient, n.Provider, payload, n.Status, n.Error)
	return err
}
