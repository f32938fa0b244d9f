package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	attendanceHandler := handlers.NewAttendanceHandler(s.service)
	galleryHandler := handlers.NewGalleryHandler(s.gallery)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		r.Route("/events/{eventID}", func(r chi.Router) {
			// Attendance
			r.Get("/attendance", attendanceHandler.List)
			r.Post("/attendance/bulk", attendanceHandler.Bulk)
			r.Post("/attendance/verify", attendanceHandler.Verify)
			r.Post("/attendance/verify-photo", attendanceHandler.VerifyPhoto)

			// Lookup without recording
			r.Post("/identify", attendanceHandler.Identify)

			// Gallery seeding
			r.Put("/gallery", galleryHandler.Import)
			r.Delete("/gallery/{volunteerID}", galleryHandler.Delete)
		})
	})
}
