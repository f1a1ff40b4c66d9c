package handlers

import (
	"net/http"

	"github.com/estatehub/showings/libs/auth"
	"github.com/go-chi/chi/v5"
)

type Middleware = func(http.Handler) http.Handler

type Routes struct {
	Public       *PublicHandler
	Appointments *AppointmentHandler
	// Authenticate attaches an optional identity; RequireRole enforces it on agent routes.
	Authenticate Middleware
	// PublicLimit, when set, rate limits the public booking routes.
	PublicLimit Middleware
}

func (rt Routes) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		if rt.Authenticate != nil {
			r.Use(rt.Authenticate)
		}

		r.Group(func(r chi.Router) {
			if rt.PublicLimit != nil {
				r.Use(rt.PublicLimit)
			}
			r.Get("/public/properties/{id}/slots", rt.Public.Slots)
			r.Post("/public/properties/{id}/bookings", rt.Public.Book)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAgent, auth.RoleAdmin))
			r.Get("/appointments", rt.Appointments.List)
			r.Post("/appointments", rt.Appointments.Create)
			r.Get("/appointments/upcoming", rt.Appointments.Upcoming)
			r.Get("/appointments/agenda", rt.Appointments.Agenda)
			r.Get("/appointments/{id}", rt.Appointments.Get)
			r.Delete("/appointments/{id}", rt.Appointments.Delete)
			r.Patch("/appointments/{id}/status", rt.Appointments.UpdateStatus)
			r.Patch("/appointments/{id}/notes", rt.Appointments.UpdateNotes)
			r.Get("/properties/{id}/appointments", rt.Appointments.ListByProperty)
		})
	})
}
