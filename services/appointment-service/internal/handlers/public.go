package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/estatehub/showings/libs/auth"
	"github.com/estatehub/showings/services/appointment-service/internal/booking"
	"github.com/estatehub/showings/services/appointment-service/internal/metrics"
	"github.com/estatehub/showings/services/appointment-service/internal/model"
	"github.com/estatehub/showings/services/appointment-service/internal/storage"
	"github.com/go-chi/chi/v5"
)

// PublicHandler serves the unauthenticated booking surface. A bearer token is optional
// and only pre-fills contact details.
type PublicHandler struct {
	svc     AppointmentService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewPublicHandler(svc AppointmentService, logger *slog.Logger, m *metrics.Metrics) *PublicHandler {
	return &PublicHandler{svc: svc, logger: logger, metrics: m}
}

type slotsResponse struct {
	PropertyID string   `json:"property_id"`
	Date       string   `json:"date"`
	Times      []string `json:"times"`
}

type bookingRequest struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type bookingResponse struct {
	Appointment  appointmentResponse   `json:"appointment"`
	Confirmation *booking.Confirmation `json:"confirmation"`
	Notices      []booking.Notice      `json:"notices"`
}

type bookingErrorResponse struct {
	Error    string           `json:"error"`
	Notices  []booking.Notice `json:"notices"`
	Redirect string           `json:"redirect,omitempty"`
}

func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "id")
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		http.Error(w, "date required", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation(time.DateOnly, raw, h.svc.Location())
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	if _, err := h.svc.Property(r.Context(), propertyID); err != nil {
		writeServiceError(w, err)
		return
	}
	times, err := h.svc.Slots(r.Context(), propertyID, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slotsResponse{PropertyID: propertyID, Date: raw, Times: times})
}

// Book runs one booking flow end to end: load the property, pick date and time,
// take contact details and submit.
func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notices := &booking.Collector{}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	deps := booking.Deps{
		Properties:   h.svc,
		Slots:        h.svc,
		Appointments: h.svc,
		Notifier:     notices,
		Location:     h.svc.Location(),
		Now:          h.svc.Now,
	}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		deps.Identity = &id
	}
	flow := booking.NewFlow(deps)

	if err := flow.Load(ctx, chi.URLParam(r, "id")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrPropertyNotFound) {
			status = http.StatusNotFound
		}
		h.fail(w, status, "property unavailable", notices, flow.Redirect(), "load", err)
		return
	}

	var date time.Time
	if raw := strings.TrimSpace(req.Date); raw != "" {
		d, err := time.ParseInLocation(time.DateOnly, raw, h.svc.Location())
		if err != nil {
			notices.Notify(booking.LevelError, "Please choose a valid date")
			h.fail(w, http.StatusBadRequest, "invalid date", notices, "", "validate", err)
			return
		}
		date = d
	}
	if !date.IsZero() {
		if err := flow.SelectDate(ctx, date); err != nil {
			status := http.StatusUnprocessableEntity
			if !errors.Is(err, booking.ErrDateOutOfRange) {
				status = http.StatusInternalServerError
			}
			h.fail(w, status, err.Error(), notices, "", "select_date", err)
			return
		}
	}
	if strings.TrimSpace(req.Time) != "" && !date.IsZero() {
		if err := flow.SelectTime(req.Time); err != nil {
			h.fail(w, http.StatusUnprocessableEntity, err.Error(), notices, "", "select_time", err)
			return
		}
	}
	flow.SetContact(booking.Contact{Name: req.Name, Email: req.Email, Phone: req.Phone, Message: req.Message})

	appt, err := flow.Submit(ctx)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, booking.ErrMissingFields), errors.Is(err, model.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, booking.ErrSlotUnavailable):
			status = http.StatusUnprocessableEntity
		}
		h.fail(w, status, errorMessage(err), notices, "", "submit", err)
		return
	}

	h.metrics.ObserveBooking("created")
	writeJSON(w, http.StatusCreated, bookingResponse{
		Appointment:  toResponse(appt, h.svc.Location()),
		Confirmation: flow.Confirmation(),
		Notices:      notices.Notices(),
	})
}

func (h *PublicHandler) fail(w http.ResponseWriter, status int, msg string, notices *booking.Collector, redirect, stage string, err error) {
	h.metrics.ObserveBooking(stage + "_failed")
	if status >= http.StatusInternalServerError {
		h.logger.Error("booking failed", "stage", stage, "err", err)
	}
	writeJSON(w, status, bookingErrorResponse{Error: msg, Notices: notices.Notices(), Redirect: redirect})
}

// errorMessage hides wrapped storage detail from public callers.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, booking.ErrMissingFields), errors.Is(err, model.ErrValidation):
		return err.Error()
	case errors.Is(err, booking.ErrSlotUnavailable):
		return booking.ErrSlotUnavailable.Error()
	}
	return booking.ErrSubmitFailed.Error()
}
