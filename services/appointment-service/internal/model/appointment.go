package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Type string

const (
	TypeShowing    Type = "showing"
	TypeInspection Type = "inspection"
	TypeMeeting    Type = "meeting"
	TypeOther      Type = "other"
)

// DefaultTimeLayout renders appointment times the way the booking form lists them.
const DefaultTimeLayout = "3:04 PM"

var (
	ErrInvalidType = errors.New("invalid appointment type")
	ErrValidation  = errors.New("validation failed")
)

func ParseType(raw string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case "":
		return TypeShowing, nil
	case TypeShowing, TypeInspection, TypeMeeting, TypeOther:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, raw)
}

type Appointment struct {
	ID              string
	PropertyID      string
	AgentID         string
	UserID          string
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	AppointmentDate time.Time
	Status          Status
	Type            Type
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Property is set by reads that join the property row.
	Property *PropertySummary
}

// AppointmentTime is derived from AppointmentDate on every call and is never stored.
func (a Appointment) AppointmentTime(layout string, loc *time.Location) string {
	if a.AppointmentDate.IsZero() {
		return ""
	}
	if layout == "" {
		layout = DefaultTimeLayout
	}
	if loc == nil {
		loc = time.UTC
	}
	return a.AppointmentDate.In(loc).Format(layout)
}

// NewAppointment is the write model for Create. It deliberately has no status
// or clock-string fields: new rows always start pending and the time label is derived.
type NewAppointment struct {
	PropertyID      string
	AgentID         string
	UserID          string
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	AppointmentDate time.Time
	Type            Type
	Notes           string
}

func (n *NewAppointment) Normalize() {
	n.PropertyID = strings.TrimSpace(n.PropertyID)
	n.AgentID = strings.TrimSpace(n.AgentID)
	n.UserID = strings.TrimSpace(n.UserID)
	n.ClientName = strings.TrimSpace(n.ClientName)
	n.ClientEmail = strings.ToLower(strings.TrimSpace(n.ClientEmail))
	n.ClientPhone = strings.TrimSpace(n.ClientPhone)
	n.Notes = strings.TrimSpace(n.Notes)
	if n.Type == "" {
		n.Type = TypeShowing
	}
}

func (n NewAppointment) Validate() error {
	var missing []string
	if n.PropertyID == "" {
		missing = append(missing, "property_id")
	}
	if n.AgentID == "" {
		missing = append(missing, "agent_id")
	}
	if n.ClientName == "" {
		missing = append(missing, "client_name")
	}
	if n.AppointmentDate.IsZero() {
		missing = append(missing, "appointment_date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	if _, err := ParseType(string(n.Type)); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if n.ClientEmail != "" && !strings.Contains(n.ClientEmail, "@") {
		return fmt.Errorf("%w: invalid client_email", ErrValidation)
	}
	return nil
}
