package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"staffsync/internal/api/middleware"
)

func newBaseRouter(log *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func NewEmployeeRouter(h *EmployeeHandlers, log *zap.Logger) http.Handler {
	r := newBaseRouter(log)

	r.Route("/api/v1/employees", func(r chi.Router) {
		r.With(middleware.Idempotency).Post("/", h.Create)
		r.Get("/", h.ListByDepartment)
		r.Get("/count", h.CountByDepartment)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Replace)
		r.Patch("/{id}", h.Patch)
		r.Delete("/{id}", h.Delete)
	})

	return r
}

func NewDepartmentRouter(h *DepartmentHandlers, events *EventHandlers, log *zap.Logger) http.Handler {
	r := newBaseRouter(log)

	r.Route("/api/v1/departments", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/employees", h.Employees)
		r.Delete("/{id}", h.Delete)
	})
	r.Post("/events/employee", events.ReceiveEmployeeEvent)

	return r
}

func NewProjectRouter(h *ProjectHandlers, events *EventHandlers, log *zap.Logger) http.Handler {
	r := newBaseRouter(log)

	r.Route("/api/v1/projects", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Post("/{id}/members", h.AddMember)
		r.Get("/{id}/members", h.ListMembers)
		r.Delete("/{id}/members/{employeeId}", h.RemoveMember)
	})
	r.Post("/events/employee", events.ReceiveEmployeeEvent)

	return r
}
