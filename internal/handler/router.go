package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/projectdesk/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса projectdesk.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.RequestID)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/payments", h.CreatePayment)
		r.Put("/payments/{id}", h.UpdatePayment)
		r.Delete("/payments/{id}", h.DeletePayment)

		r.Get("/projects/{id}/payments", h.GetProjectPayments)
		r.Post("/projects/{id}/progress", h.RecalculateProgress)

		r.Post("/invoices/{id}/reconcile", h.ReconcileInvoice)

		r.Post("/tasks", h.CreateTask)
		r.Patch("/tasks/{id}", h.UpdateTaskStatus)
		r.Delete("/tasks/{id}", h.DeleteTask)

		r.Get("/dashboard", h.GetDashboard)
		r.Get("/alerts/expiring", h.GetExpiryAlerts)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
