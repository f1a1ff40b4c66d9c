package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/estatehub/showings/libs/events"
)

const (
	dateLayout = "Monday, January 2, 2006"
	timeLayout = "3:04 PM"
)

// Compose builds the client email for an appointment event. It reports false
// for events that do not notify the client.
func Compose(eventType string, p events.AppointmentPayload, loc *time.Location) (Message, bool) {
	if loc == nil {
		loc = time.UTC
	}
	if strings.TrimSpace(p.ClientEmail) == "" {
		return Message{}, false
	}
	when := p.AppointmentDate.In(loc)
	property := p.PropertyTitle
	if property == "" {
		property = "the property"
	}

	var subject, lead string
	switch eventType {
	case events.TopicAppointmentBooked:
		subject = "Showing request received: " + property
		lead = fmt.Sprintf("Thanks for your request to view %s. The agent will confirm it shortly.", property)
	case events.TopicAppointmentStatusChanged:
		switch p.Status {
		case "confirmed":
			subject = "Showing confirmed: " + property
			lead = fmt.Sprintf("Your showing of %s is confirmed.", property)
		case "cancelled":
			subject = "Showing cancelled: " + property
			lead = fmt.Sprintf("Your showing of %s has been cancelled.", property)
		case "completed":
			subject = "Thanks for visiting " + property
			lead = fmt.Sprintf("Thanks for visiting %s. Reply to this email with any questions.", property)
		default:
			return Message{}, false
		}
	default:
		return Message{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n%s\n\n", firstName(p.ClientName), lead)
	fmt.Fprintf(&b, "Date: %s\nTime: %s\nStatus: %s\n", when.Format(dateLayout), when.Format(timeLayout), p.Status)
	return Message{
		To:      p.ClientEmail,
		ToName:  p.ClientName,
		Subject: subject,
		Body:    b.String(),
	}, true
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
