package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/estatehub/showings/services/appointment-service/internal/appointments"
	"github.com/estatehub/showings/services/appointment-service/internal/model"
	"github.com/estatehub/showings/services/appointment-service/internal/storage"
)

type propertyResponse struct {
	Title    string `json:"title"`
	Address  string `json:"address"`
	ImageURL string `json:"image_url,omitempty"`
}

type appointmentResponse struct {
	ID              string            `json:"id"`
	PropertyID      string            `json:"property_id"`
	AgentID         string            `json:"agent_id"`
	UserID          string            `json:"user_id,omitempty"`
	ClientName      string            `json:"client_name"`
	ClientEmail     string            `json:"client_email"`
	ClientPhone     string            `json:"client_phone,omitempty"`
	AppointmentDate string            `json:"appointment_date"`
	AppointmentTime string            `json:"appointment_time"`
	Status          string            `json:"status"`
	Type            string            `json:"type"`
	Notes           string            `json:"notes,omitempty"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
	Property        *propertyResponse `json:"property,omitempty"`
}

func toResponse(a model.Appointment, loc *time.Location) appointmentResponse {
	resp := appointmentResponse{
		ID:              a.ID,
		PropertyID:      a.PropertyID,
		AgentID:         a.AgentID,
		UserID:          a.UserID,
		ClientName:      a.ClientName,
		ClientEmail:     a.ClientEmail,
		ClientPhone:     a.ClientPhone,
		AppointmentDate: a.AppointmentDate.In(loc).Format(time.RFC3339),
		AppointmentTime: a.AppointmentTime("", loc),
		Status:          string(a.Status),
		Type:            string(a.Type),
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if a.Property != nil {
		resp.Property = &propertyResponse{
			Title:    a.Property.Title,
			Address:  a.Property.Address,
			ImageURL: a.Property.ImageURL,
		}
	}
	return resp
}

func toResponses(appts []model.Appointment, loc *time.Location) []appointmentResponse {
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toResponse(a, loc))
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeServiceError maps domain errors onto plain-text HTTP errors.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrPropertyNotFound):
		http.Error(w, "property not found", http.StatusNotFound)
	case errors.Is(err, appointments.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, model.ErrInvalidTransition):
		http.Error(w, "status transition not allowed", http.StatusConflict)
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInvalidStatus), errors.Is(err, model.ErrInvalidType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
