package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/estatehub/showings/libs/auth"
	"github.com/estatehub/showings/libs/events"
	"github.com/estatehub/showings/services/appointment-service/internal/availability"
	"github.com/estatehub/showings/services/appointment-service/internal/metrics"
	"github.com/estatehub/showings/services/appointment-service/internal/model"
	"github.com/estatehub/showings/services/appointment-service/internal/outbox"
	"github.com/estatehub/showings/services/appointment-service/internal/storage"
	"github.com/jinzhu/now"
)

var ErrForbidden = errors.New("forbidden")

type Config struct {
	// Location decides calendar days, weekend classification and "today".
	Location *time.Location
	// ExcludeBooked removes slots that overlap existing non-cancelled showings.
	ExcludeBooked bool
	ShowingLength time.Duration
	UpcomingLimit int
}

type Service struct {
	appts   *storage.AppointmentRepository
	props   *storage.PropertyRepository
	outbox  *outbox.Repository
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config
	clock   func() time.Time
}

func NewService(appts *storage.AppointmentRepository, props *storage.PropertyRepository, outboxRepo *outbox.Repository, logger *slog.Logger, m *metrics.Metrics, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ShowingLength <= 0 {
		cfg.ShowingLength = availability.SlotStep
	}
	if cfg.UpcomingLimit <= 0 {
		cfg.UpcomingLimit = 5
	}
	return &Service{
		appts:   appts,
		props:   props,
		outbox:  outboxRepo,
		logger:  logger,
		metrics: m,
		cfg:     cfg,
		clock:   time.Now,
	}
}

func (s *Service) Location() *time.Location { return s.cfg.Location }

func (s *Service) Now() time.Time { return s.clock().In(s.cfg.Location) }

func (s *Service) startOfToday() time.Time {
	return (&now.Config{TimeLocation: s.cfg.Location}).With(s.clock()).BeginningOfDay()
}

// Property loads a listing with its representative image. Image lookup failures are logged and ignored.
func (s *Service) Property(ctx context.Context, id string) (model.Property, error) {
	p, err := s.props.Get(ctx, id)
	if err != nil {
		return model.Property{}, s.fail(ctx, "get property", err, "property_id", id)
	}
	images, err := s.props.PrimaryImages(ctx, []string{p.ID})
	if err != nil {
		s.logger.WarnContext(ctx, "property image lookup failed", "property_id", id, "err", err)
		return p, nil
	}
	p.ImageURL = images[p.ID]
	return p, nil
}

// Slots lists the bookable clock labels for the property on date's calendar day.
func (s *Service) Slots(ctx context.Context, propertyID string, date time.Time) ([]string, error) {
	if date.IsZero() {
		return nil, nil
	}
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)
	if !s.cfg.ExcludeBooked {
		return availability.Labels(availability.DailySlots(day), ""), nil
	}

	starts, err := s.appts.BusyStarts(ctx, propertyID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, s.fail(ctx, "list busy slots", err, "property_id", propertyID)
	}
	busy := make([]availability.Interval, 0, len(starts))
	for _, st := range starts {
		busy = append(busy, availability.Interval{Start: st, End: st.Add(s.cfg.ShowingLength)})
	}
	return availability.Labels(availability.OpenSlots(day, s.cfg.ShowingLength, busy), ""), nil
}

// Create stores a pending appointment and its booked event in one transaction.
func (s *Service) Create(ctx context.Context, in model.NewAppointment) (appt model.Appointment, err error) {
	defer s.metrics.ObserveOperation("create", time.Now(), &err)

	in.Normalize()
	if err := in.Validate(); err != nil {
		return model.Appointment{}, s.fail(ctx, "create appointment", err, "property_id", in.PropertyID)
	}

	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return model.Appointment{}, s.fail(ctx, "create appointment", err, "property_id", in.PropertyID)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err = s.appts.Insert(ctx, tx, in)
	if err != nil {
		return model.Appointment{}, s.fail(ctx, "create appointment", err, "property_id", in.PropertyID)
	}
	if err := s.outbox.InsertJSON(ctx, tx, events.AggregateAppointment, appt.ID, events.TopicAppointmentBooked, s.payload(appt, "")); err != nil {
		return model.Appointment{}, s.fail(ctx, "create appointment", err, "appointment_id", appt.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, s.fail(ctx, "create appointment", err, "appointment_id", appt.ID)
	}

	s.logger.InfoContext(ctx, "appointment created", "appointment_id", appt.ID, "property_id", appt.PropertyID, "agent_id", appt.AgentID)
	return appt, nil
}

// CreateForAgent is the agent-initiated create. The appointment always belongs to
// the property's listing agent; agents may only book onto their own listings.
func (s *Service) CreateForAgent(ctx context.Context, actor auth.Identity, in model.NewAppointment) (model.Appointment, error) {
	if strings.TrimSpace(in.PropertyID) == "" {
		return s.Create(ctx, in)
	}
	p, err := s.props.Get(ctx, in.PropertyID)
	if err != nil {
		return model.Appointment{}, s.fail(ctx, "create appointment", err, "property_id", in.PropertyID)
	}
	if err := authorizeAgent(actor, p.AgentID); err != nil {
		return model.Appointment{}, s.fail(ctx, "create appointment", err, "property_id", in.PropertyID, "actor", actor.UserID)
	}
	if in.AgentID != "" && in.AgentID != p.AgentID {
		err := fmt.Errorf("%w: agent_id does not match the listing agent", model.ErrValidation)
		return model.Appointment{}, s.fail(ctx, "create appointment", err, "property_id", in.PropertyID, "agent_id", in.AgentID)
	}
	in.AgentID = p.AgentID
	return s.Create(ctx, in)
}

func (s *Service) ListForAgent(ctx context.Context, actor auth.Identity, agentID string, f storage.ListFilter) (appts []model.Appointment, err error) {
	defer s.metrics.ObserveOperation("list_for_agent", time.Now(), &err)

	if err := authorizeAgent(actor, agentID); err != nil {
		return nil, s.fail(ctx, "list appointments", err, "agent_id", agentID, "actor", actor.UserID)
	}
	appts, err = s.appts.ListForAgent(ctx, agentID, f)
	if err != nil {
		return nil, s.fail(ctx, "list appointments", err, "agent_id", agentID)
	}
	s.attachImages(ctx, appts)
	return appts, nil
}

func (s *Service) ListUpcoming(ctx context.Context, actor auth.Identity, agentID string, limit int) (appts []model.Appointment, err error) {
	defer s.metrics.ObserveOperation("list_upcoming", time.Now(), &err)

	if err := authorizeAgent(actor, agentID); err != nil {
		return nil, s.fail(ctx, "list upcoming appointments", err, "agent_id", agentID, "actor", actor.UserID)
	}
	if limit <= 0 {
		limit = s.cfg.UpcomingLimit
	}
	appts, err = s.appts.ListUpcoming(ctx, agentID, s.startOfToday(), limit)
	if err != nil {
		return nil, s.fail(ctx, "list upcoming appointments", err, "agent_id", agentID)
	}
	s.attachImages(ctx, appts)
	return appts, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Identity, id string) (appt model.Appointment, err error) {
	defer s.metrics.ObserveOperation("get", time.Now(), &err)

	appt, err = s.appts.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, s.fail(ctx, "get appointment", err, "appointment_id", id)
	}
	if err := authorizeAgent(actor, appt.AgentID); err != nil {
		return model.Appointment{}, s.fail(ctx, "get appointment", err, "appointment_id", id, "actor", actor.UserID)
	}
	one := []model.Appointment{appt}
	s.attachImages(ctx, one)
	return one[0], nil
}

// ListByProperty is restricted to the property's agent and admins. No image enrichment.
func (s *Service) ListByProperty(ctx context.Context, actor auth.Identity, propertyID string) (appts []model.Appointment, err error) {
	defer s.metrics.ObserveOperation("list_by_property", time.Now(), &err)

	p, err := s.props.Get(ctx, propertyID)
	if err != nil {
		return nil, s.fail(ctx, "list property appointments", err, "property_id", propertyID)
	}
	if err := authorizeAgent(actor, p.AgentID); err != nil {
		return nil, s.fail(ctx, "list property appointments", err, "property_id", propertyID, "actor", actor.UserID)
	}
	appts, err = s.appts.ListByProperty(ctx, propertyID)
	if err != nil {
		return nil, s.fail(ctx, "list property appointments", err, "property_id", propertyID)
	}
	return appts, nil
}

// UpdateStatus applies one FSM step under a row lock. Re-applying the current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Identity, id string, next model.Status) (appt model.Appointment, err error) {
	defer s.metrics.ObserveOperation("update_status", time.Now(), &err)

	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment status", err, "appointment_id", id)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := s.appts.GetForUpdate(ctx, tx, id)
	if err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment status", err, "appointment_id", id)
	}
	if err := authorizeAgent(actor, current.AgentID); err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment status", err, "appointment_id", id, "actor", actor.UserID)
	}
	if current.Status == next {
		return current, nil
	}
	if err := current.Status.Transition(next); err != nil {
		s.metrics.ObserveTransition(string(current.Status), string(next), err)
		return model.Appointment{}, s.fail(ctx, "update appointment status", err, "appointment_id", id)
	}

	appt, err = s.appts.UpdateStatus(ctx, tx, id, next)
	if err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment status", err, "appointment_id", id)
	}
	if err := s.outbox.InsertJSON(ctx, tx, events.AggregateAppointment, id, events.TopicAppointmentStatusChanged, s.payload(appt, current.Status)); err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment status", err, "appointment_id", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment status", err, "appointment_id", id)
	}

	s.metrics.ObserveTransition(string(current.Status), string(next), nil)
	s.logger.InfoContext(ctx, "appointment status changed", "appointment_id", id, "from", current.Status, "to", next)
	return appt, nil
}

func (s *Service) UpdateNotes(ctx context.Context, actor auth.Identity, id, notes string) (appt model.Appointment, err error) {
	defer s.metrics.ObserveOperation("update_notes", time.Now(), &err)

	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment notes", err, "appointment_id", id)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := s.appts.GetForUpdate(ctx, tx, id)
	if err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment notes", err, "appointment_id", id)
	}
	if err := authorizeAgent(actor, current.AgentID); err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment notes", err, "appointment_id", id, "actor", actor.UserID)
	}
	appt, err = s.appts.UpdateNotes(ctx, tx, id, notes)
	if err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment notes", err, "appointment_id", id)
	}
	if err := s.outbox.InsertJSON(ctx, tx, events.AggregateAppointment, id, events.TopicAppointmentNotesUpdated, s.payload(appt, "")); err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment notes", err, "appointment_id", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, s.fail(ctx, "update appointment notes", err, "appointment_id", id)
	}
	return appt, nil
}

// Delete reports whether a row was removed. A missing id is not an error.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) (removed bool, err error) {
	defer s.metrics.ObserveOperation("delete", time.Now(), &err)

	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return false, s.fail(ctx, "delete appointment", err, "appointment_id", id)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := s.appts.GetForUpdate(ctx, tx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(ctx, "delete appointment", err, "appointment_id", id)
	}
	if err := authorizeAgent(actor, current.AgentID); err != nil {
		return false, s.fail(ctx, "delete appointment", err, "appointment_id", id, "actor", actor.UserID)
	}
	removed, err = s.appts.Delete(ctx, tx, id)
	if err != nil {
		return false, s.fail(ctx, "delete appointment", err, "appointment_id", id)
	}
	if removed {
		if err := s.outbox.InsertJSON(ctx, tx, events.AggregateAppointment, id, events.TopicAppointmentDeleted, s.payload(current, "")); err != nil {
			return false, s.fail(ctx, "delete appointment", err, "appointment_id", id)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, s.fail(ctx, "delete appointment", err, "appointment_id", id)
	}
	return removed, nil
}

// attachImages resolves every listed property's image with one query.
// On failure the appointments are returned without images.
func (s *Service) attachImages(ctx context.Context, appts []model.Appointment) {
	seen := make(map[string]struct{}, len(appts))
	ids := make([]string, 0, len(appts))
	for _, a := range appts {
		if a.Property == nil {
			continue
		}
		if _, ok := seen[a.PropertyID]; ok {
			continue
		}
		seen[a.PropertyID] = struct{}{}
		ids = append(ids, a.PropertyID)
	}
	if len(ids) == 0 {
		return
	}

	images, err := s.props.PrimaryImages(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "image enrichment failed", "properties", len(ids), "err", err)
		return
	}
	for i := range appts {
		if appts[i].Property != nil {
			appts[i].Property.ImageURL = images[appts[i].PropertyID]
		}
	}
}

func (s *Service) payload(appt model.Appointment, previous model.Status) events.AppointmentPayload {
	p := events.AppointmentPayload{
		AppointmentID:   appt.ID,
		PropertyID:      appt.PropertyID,
		AgentID:         appt.AgentID,
		ClientName:      appt.ClientName,
		ClientEmail:     appt.ClientEmail,
		AppointmentDate: appt.AppointmentDate.UTC(),
		Status:          string(appt.Status),
		PreviousStatus:  string(previous),
		Type:            string(appt.Type),
		Notes:           appt.Notes,
		OccurredAt:      s.clock().UTC(),
	}
	if appt.Property != nil {
		p.PropertyTitle = appt.Property.Title
	}
	return p
}

// fail logs a failed operation with its identifiers and wraps err with op.
func (s *Service) fail(ctx context.Context, op string, err error, attrs ...any) error {
	level := slog.LevelError
	if expected(err) {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, op+" failed", append(attrs, "err", err)...)
	return fmt.Errorf("%s: %w", op, err)
}

func expected(err error) bool {
	return errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrPropertyNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, model.ErrInvalidTransition) ||
		errors.Is(err, model.ErrValidation)
}

func authorizeAgent(actor auth.Identity, agentID string) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.UserID != "" && actor.UserID == agentID {
		return nil
	}
	return ErrForbidden
}
