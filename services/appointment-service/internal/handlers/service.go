package handlers

import (
	"context"
	"time"

	"github.com/estatehub/showings/libs/auth"
	"github.com/estatehub/showings/services/appointment-service/internal/model"
	"github.com/estatehub/showings/services/appointment-service/internal/storage"
)

// AppointmentService is implemented by *appointments.Service.
type AppointmentService interface {
	Property(ctx context.Context, id string) (model.Property, error)
	Slots(ctx context.Context, propertyID string, date time.Time) ([]string, error)
	Create(ctx context.Context, in model.NewAppointment) (model.Appointment, error)
	CreateForAgent(ctx context.Context, actor auth.Identity, in model.NewAppointment) (model.Appointment, error)
	ListForAgent(ctx context.Context, actor auth.Identity, agentID string, f storage.ListFilter) ([]model.Appointment, error)
	ListUpcoming(ctx context.Context, actor auth.Identity, agentID string, limit int) ([]model.Appointment, error)
	Get(ctx context.Context, actor auth.Identity, id string) (model.Appointment, error)
	ListByProperty(ctx context.Context, actor auth.Identity, propertyID string) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, actor auth.Identity, id string, status model.Status) (model.Appointment, error)
	UpdateNotes(ctx context.Context, actor auth.Identity, id, notes string) (model.Appointment, error)
	Delete(ctx context.Context, actor auth.Identity, id string) (bool, error)
	Location() *time.Location
	Now() time.Time
}
