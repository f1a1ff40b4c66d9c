package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/estatehub/showings/libs/auth"
	"github.com/estatehub/showings/services/appointment-service/internal/agenda"
	"github.com/estatehub/showings/services/appointment-service/internal/metrics"
	"github.com/estatehub/showings/services/appointment-service/internal/model"
	"github.com/estatehub/showings/services/appointment-service/internal/storage"
	"github.com/go-chi/chi/v5"
)

type AppointmentHandler struct {
	svc     AppointmentService
	logger  *slog.Logger
	metrics *metrics.Metrics
	view    *agenda.View
}

func NewAppointmentHandler(svc AppointmentService, logger *slog.Logger, m *metrics.Metrics) *AppointmentHandler {
	return &AppointmentHandler{
		svc:     svc,
		logger:  logger,
		metrics: m,
		view:    agenda.NewView(svc.Location(), svc.Now),
	}
}

// createAppointmentRequest has no status or appointment_time: new appointments
// always start pending and the clock label is derived on read.
type createAppointmentRequest struct {
	PropertyID      string `json:"property_id"`
	AgentID         string `json:"agent_id"`
	UserID          string `json:"user_id"`
	ClientName      string `json:"client_name"`
	ClientEmail     string `json:"client_email"`
	ClientPhone     string `json:"client_phone"`
	AppointmentDate string `json:"appointment_date"`
	Type            string `json:"type"`
	Notes           string `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

type listResponse struct {
	Items []appointmentResponse `json:"items"`
}

type agendaGroupResponse struct {
	Key          string                `json:"key"`
	Label        string                `json:"label"`
	Appointments []appointmentResponse `json:"appointments"`
}

type agendaResponse struct {
	Tab    string                `json:"tab"`
	Groups []agendaGroupResponse `json:"groups"`
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(time.RFC3339, strings.TrimSpace(req.AppointmentDate))
	if err != nil {
		http.Error(w, "invalid appointment_date", http.StatusBadRequest)
		return
	}
	typ, err := model.ParseType(req.Type)
	if err != nil {
		http.Error(w, "invalid type", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.CreateForAgent(r.Context(), actor, model.NewAppointment{
		PropertyID:      req.PropertyID,
		AgentID:         req.AgentID,
		UserID:          req.UserID,
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		ClientPhone:     req.ClientPhone,
		AppointmentDate: date,
		Type:            typ,
		Notes:           req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(appt, h.svc.Location()))
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())
	q := r.URL.Query()

	filter, err := h.parseFilter(q.Get("from"), q.Get("to"), q.Get("status"), q.Get("property_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	appts, err := h.svc.ListForAgent(r.Context(), actor, agentParam(r, actor), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: toResponses(appts, h.svc.Location())})
}

func (h *AppointmentHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 50 {
			http.Error(w, "limit must be between 1 and 50", http.StatusBadRequest)
			return
		}
		limit = n
	}
	appts, err := h.svc.ListUpcoming(r.Context(), actor, agentParam(r, actor), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: toResponses(appts, h.svc.Location())})
}

// Agenda serves the search/status/tab view grouped by day.
func (h *AppointmentHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())
	q := r.URL.Query()

	tab, err := agenda.ParseTab(q.Get("tab"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status := strings.ToLower(strings.TrimSpace(q.Get("status")))
	if status != "" && status != agenda.StatusAll {
		if _, err := model.ParseStatus(status); err != nil {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
	}

	appts, err := h.svc.ListForAgent(r.Context(), actor, agentParam(r, actor), storage.ListFilter{})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.metrics.ObserveAgenda(string(tab))

	loc := h.svc.Location()
	groups := h.view.Build(appts, agenda.Query{Search: q.Get("search"), Status: status, Tab: tab})
	resp := agendaResponse{Tab: string(tab), Groups: make([]agendaGroupResponse, 0, len(groups))}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, agendaGroupResponse{
			Key:          g.Key,
			Label:        g.Label,
			Appointments: toResponses(g.Appointments, loc),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	appt, err := h.svc.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt, h.svc.Location()))
}

func (h *AppointmentHandler) ListByProperty(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	appts, err := h.svc.ListByProperty(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: toResponses(appts, h.svc.Location())})
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	appt, err := h.svc.UpdateStatus(r.Context(), actor, chi.URLParam(r, "id"), status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt, h.svc.Location()))
}

func (h *AppointmentHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var req updateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	appt, err := h.svc.UpdateNotes(r.Context(), actor, chi.URLParam(r, "id"), strings.TrimSpace(req.Notes))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt, h.svc.Location()))
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	removed, err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": removed})
}

// parseFilter accepts RFC3339 timestamps or plain dates; a plain "to" date covers the whole day.
func (h *AppointmentHandler) parseFilter(from, to, status, propertyID string) (storage.ListFilter, error) {
	var (
		f   storage.ListFilter
		err error
	)
	loc := h.svc.Location()
	if from = strings.TrimSpace(from); from != "" {
		if f.From, err = parseBound(from, loc, false); err != nil {
			return storage.ListFilter{}, errInvalidParam("from")
		}
	}
	if to = strings.TrimSpace(to); to != "" {
		if f.To, err = parseBound(to, loc, true); err != nil {
			return storage.ListFilter{}, errInvalidParam("to")
		}
	}
	if status = strings.TrimSpace(status); status != "" && status != agenda.StatusAll {
		if f.Status, err = model.ParseStatus(status); err != nil {
			return storage.ListFilter{}, errInvalidParam("status")
		}
	}
	f.PropertyID = strings.TrimSpace(propertyID)
	return f, nil
}

func parseBound(raw string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "invalid " + string(e) }

// agentParam lets admins query another agent's book; agents always see their own.
func agentParam(r *http.Request, actor auth.Identity) string {
	if actor.IsAdmin() {
		if id := strings.TrimSpace(r.URL.Query().Get("agent_id")); id != "" {
			return id
		}
	}
	return actor.UserID
}
