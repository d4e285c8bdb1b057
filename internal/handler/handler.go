// Package handler содержит HTTP-обработчики API сервиса projectdesk.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/projectdesk/internal/middleware"
	"github.com/mmeshcher/projectdesk/internal/model"
	"github.com/mmeshcher/projectdesk/internal/money"
	"github.com/mmeshcher/projectdesk/internal/repository"
	"github.com/mmeshcher/projectdesk/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreatePayment(ctx context.Context, ownerID string, in model.PaymentInput) (*model.Payment, error)
	UpdatePayment(ctx context.Context, ownerID, paymentID string, patch model.PaymentPatch) (*model.Payment, error)
	DeletePayment(ctx context.Context, ownerID, paymentID string) error
	GetPaymentsByProject(ctx context.Context, ownerID, projectID string) ([]model.Payment, error)
	ReconcileInvoice(ctx context.Context, ownerID, invoiceID string) (*model.Invoice, error)
	CreateTask(ctx context.Context, ownerID string, in model.TaskInput) (*model.Task, error)
	UpdateTaskStatus(ctx context.Context, ownerID, taskID string, status model.TaskStatus) (*model.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) error
	RecalculateProgress(ctx context.Context, ownerID, projectID string) (int, error)
	GetDashboard(ctx context.Context, ownerID string) (*model.Dashboard, error)
	GetExpiryAlerts(ctx context.Context, ownerID string) (*model.ExpiryAlerts, error)
}

// Handler реализует HTTP-обработчики API сервиса projectdesk.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// CreatePayment обрабатывает создание платежа.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	in, err := req.toInput()
	if err != nil {
		h.writeError(w, r, "create payment", err)
		return
	}

	payment, err := h.service.CreatePayment(r.Context(), ownerID, in)
	if err != nil {
		h.writeError(w, r, "create payment", err, zap.String("project_id", in.ProjectID))
		return
	}

	h.writeJSON(w, http.StatusCreated, newPaymentResponse(payment))
}

// UpdatePayment обрабатывает частичное обновление платежа.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	paymentID := chi.URLParam(r, "id")

	var req paymentPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		h.writeError(w, r, "update payment", err)
		return
	}

	payment, err := h.service.UpdatePayment(r.Context(), ownerID, paymentID, patch)
	if err != nil {
		h.writeError(w, r, "update payment", err, zap.String("payment_id", paymentID))
		return
	}

	h.writeJSON(w, http.StatusOK, newPaymentResponse(payment))
}

// DeletePayment обрабатывает удаление платежа.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	paymentID := chi.URLParam(r, "id")

	if err := h.service.DeletePayment(r.Context(), ownerID, paymentID); err != nil {
		h.writeError(w, r, "delete payment", err, zap.String("payment_id", paymentID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetProjectPayments возвращает платежи проекта.
func (h *Handler) GetProjectPayments(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")

	payments, err := h.service.GetPaymentsByProject(r.Context(), ownerID, projectID)
	if err != nil {
		h.writeError(w, r, "get payments", err, zap.String("project_id", projectID))
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		resp = append(resp, newPaymentResponse(&payments[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ReconcileInvoice пересчитывает оплаченную сумму и статус счёта.
func (h *Handler) ReconcileInvoice(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	invoiceID := chi.URLParam(r, "id")

	invoice, err := h.service.ReconcileInvoice(r.Context(), ownerID, invoiceID)
	if err != nil {
		h.writeError(w, r, "reconcile invoice", err, zap.String("invoice_id", invoiceID))
		return
	}

	h.writeJSON(w, http.StatusOK, newInvoiceResponse(invoice))
}

// CreateTask обрабатывает создание задачи.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	task, err := h.service.CreateTask(r.Context(), ownerID, model.TaskInput{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Status:    model.TaskStatus(req.Status),
	})
	if err != nil {
		h.writeError(w, r, "create task", err, zap.String("project_id", req.ProjectID))
		return
	}

	h.writeJSON(w, http.StatusCreated, newTaskResponse(task))
}

// UpdateTaskStatus обрабатывает смену статуса задачи.
func (h *Handler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "id")

	var req taskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	task, err := h.service.UpdateTaskStatus(r.Context(), ownerID, taskID, model.TaskStatus(req.Status))
	if err != nil {
		h.writeError(w, r, "update task", err, zap.String("task_id", taskID))
		return
	}

	h.writeJSON(w, http.StatusOK, newTaskResponse(task))
}

// DeleteTask обрабатывает удаление задачи.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "id")

	if err := h.service.DeleteTask(r.Context(), ownerID, taskID); err != nil {
		h.writeError(w, r, "delete task", err, zap.String("task_id", taskID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RecalculateProgress пересчитывает прогресс проекта по его задачам.
func (h *Handler) RecalculateProgress(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")

	progress, err := h.service.RecalculateProgress(r.Context(), ownerID, projectID)
	if err != nil {
		h.writeError(w, r, "recalculate progress", err, zap.String("project_id", projectID))
		return
	}

	h.writeJSON(w, http.StatusOK, progressResponse{ProjectID: projectID, Progress: progress})
}

// GetDashboard возвращает сводку пользователя.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	dashboard, err := h.service.GetDashboard(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, r, "get dashboard", err)
		return
	}

	h.writeJSON(w, http.StatusOK, newDashboardResponse(dashboard))
}

// GetExpiryAlerts возвращает истекающие домены и хостинги.
func (h *Handler) GetExpiryAlerts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	alerts, err := h.service.GetExpiryAlerts(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, r, "get expiry alerts", err)
		return
	}

	h.writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return ownerID, ok
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// writeError переводит ошибку сервиса в HTTP-статус. Детали внутренних ошибок клиенту не отдаются.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error, fields ...zap.Field) {
	switch {
	case errors.Is(err, validation.ErrInvalid), errors.Is(err, money.ErrPrecision), errors.Is(err, money.ErrOutOfRange):
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	default:
		fields = append(fields,
			zap.Error(err),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.logger.Error(op+" error", fields...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
