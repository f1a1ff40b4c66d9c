package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/estatehub/showings/libs/db"
	"github.com/estatehub/showings/services/appointment-service/internal/model"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `a.id::text, a.property_id::text, a.agent_id::text, COALESCE(a.user_id::text, ''),
			a.client_name, a.client_email, COALESCE(a.client_phone, ''), a.appointment_date,
			a.status, a.type, COALESCE(a.notes, ''), a.created_at, a.updated_at`

const appointmentWithPropertyColumns = appointmentColumns + `, p.title, COALESCE(p.address, '')`

// returningWithProperty carries the listing title into write paths so events can name it.
const returningWithProperty = appointmentColumns + `,
			COALESCE((SELECT p.title FROM properties p WHERE p.id = a.property_id), ''),
			COALESCE((SELECT p.address FROM properties p WHERE p.id = a.property_id), '')`

type AppointmentRepository struct {
	db db.Querier
}

// ListFilter narrows ListForAgent. Zero values do not filter.
type ListFilter struct {
	From       time.Time
	To         time.Time
	Status     model.Status
	PropertyID string
}

func NewAppointmentRepository(q db.Querier) *AppointmentRepository {
	return &AppointmentRepository{db: q}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// Insert stores a new appointment. The status column is always written as pending.
func (r *AppointmentRepository) Insert(ctx context.Context, tx pgx.Tx, in model.NewAppointment) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments AS a
			(property_id, agent_id, user_id, client_name, client_email, client_phone, appointment_date, status, type, notes)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, NULLIF($6, ''), $7, 'pending', $8, NULLIF($9, ''))
		RETURNING `+returningWithProperty,
		in.PropertyID, in.AgentID, in.UserID, in.ClientName, in.ClientEmail, in.ClientPhone,
		in.AppointmentDate, string(in.Type), in.Notes)
	return scanAppointment(row, true)
}

func (r *AppointmentRepository) ListForAgent(ctx context.Context, agentID string, f ListFilter) ([]model.Appointment, error) {
	var (
		where = []string{"a.agent_id = $1"}
		args  = []any{agentID}
	)
	if !f.From.IsZero() {
		args = append(args, f.From)
		where = append(where, fmt.Sprintf("a.appointment_date >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		where = append(where, fmt.Sprintf("a.appointment_date <= $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if f.PropertyID != "" {
		args = append(args, f.PropertyID)
		where = append(where, fmt.Sprintf("a.property_id = $%d", len(args)))
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentWithPropertyColumns+`
		FROM appointments a
		JOIN properties p ON p.id = a.property_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY a.appointment_date ASC`, args...)
	if err != nil {
		return noMatchOnInvalidID(nil, err)
	}
	return noMatchOnInvalidID(collectAppointments(rows, true))
}

// ListUpcoming returns non-cancelled appointments dated at or after since, soonest first.
func (r *AppointmentRepository) ListUpcoming(ctx context.Context, agentID string, since time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentWithPropertyColumns+`
		FROM appointments a
		JOIN properties p ON p.id = a.property_id
		WHERE a.agent_id = $1
			AND a.appointment_date >= $2
			AND a.status <> 'cancelled'
		ORDER BY a.appointment_date ASC
		LIMIT $3`, agentID, since, limit)
	if err != nil {
		return noMatchOnInvalidID(nil, err)
	}
	return noMatchOnInvalidID(collectAppointments(rows, true))
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentWithPropertyColumns+`
		FROM appointments a
		JOIN properties p ON p.id = a.property_id
		WHERE a.id = $1`, id)
	appt, err := scanAppointment(row, true)
	if db.IsNotFound(err) {
		return model.Appointment{}, ErrNotFound
	}
	return appt, err
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentWithPropertyColumns+`
		FROM appointments a
		JOIN properties p ON p.id = a.property_id
		WHERE a.id = $1
		FOR UPDATE OF a`, id)
	appt, err := scanAppointment(row, true)
	if db.IsNotFound(err) {
		return model.Appointment{}, ErrNotFound
	}
	return appt, err
}

func (r *AppointmentRepository) ListByProperty(ctx context.Context, propertyID string) ([]model.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.property_id = $1
		ORDER BY a.appointment_date ASC`, propertyID)
	if err != nil {
		return noMatchOnInvalidID(nil, err)
	}
	return noMatchOnInvalidID(collectAppointments(rows, false))
}

// BusyStarts returns the start times of non-cancelled appointments for a property in [from, to).
func (r *AppointmentRepository) BusyStarts(ctx context.Context, propertyID string, from, to time.Time) ([]time.Time, error) {
	rows, err := r.db.Query(ctx, `
		SELECT appointment_date
		FROM appointments
		WHERE property_id = $1
			AND status <> 'cancelled'
			AND appointment_date >= $2
			AND appointment_date < $3
		ORDER BY appointment_date ASC`, propertyID, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		UPDATE appointments AS a
		SET status = $2,
			updated_at = now()
		WHERE a.id = $1
		RETURNING `+returningWithProperty, id, string(status))
	appt, err := scanAppointment(row, true)
	if db.IsNotFound(err) {
		return model.Appointment{}, ErrNotFound
	}
	return appt, err
}

func (r *AppointmentRepository) UpdateNotes(ctx context.Context, tx pgx.Tx, id, notes string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		UPDATE appointments AS a
		SET notes = NULLIF($2, ''),
			updated_at = now()
		WHERE a.id = $1
		RETURNING `+returningWithProperty, id, notes)
	appt, err := scanAppointment(row, true)
	if db.IsNotFound(err) {
		return model.Appointment{}, ErrNotFound
	}
	return appt, err
}

func (r *AppointmentRepository) Delete(ctx context.Context, tx pgx.Tx, id string) (bool, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner, withProperty bool) (model.Appointment, error) {
	var (
		appt   model.Appointment
		status string
		typ    string
		title  string
		addr   string
	)
	dest := []any{
		&appt.ID,
		&appt.PropertyID,
		&appt.AgentID,
		&appt.UserID,
		&appt.ClientName,
		&appt.ClientEmail,
		&appt.ClientPhone,
		&appt.AppointmentDate,
		&status,
		&typ,
		&appt.Notes,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	}
	if withProperty {
		dest = append(dest, &title, &addr)
	}
	if err := row.Scan(dest...); err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.Type = model.Type(typ)
	if withProperty {
		appt.Property = &model.PropertySummary{Title: title, Address: addr}
	}
	return appt, nil
}

func collectAppointments(rows pgx.Rows, withProperty bool) ([]model.Appointment, error) {
	defer rows.Close()

	appts := []model.Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows, withProperty)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// noMatchOnInvalidID turns a malformed uuid filter into an empty result.
func noMatchOnInvalidID(appts []model.Appointment, err error) ([]model.Appointment, error) {
	if db.IsInvalidText(err) {
		return []model.Appointment{}, nil
	}
	return appts, err
}
