package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/projectdesk/internal/middleware"
	"github.com/mmeshcher/projectdesk/internal/model"
	"github.com/mmeshcher/projectdesk/internal/repository"
	"github.com/mmeshcher/projectdesk/internal/service"
	"github.com/mmeshcher/projectdesk/internal/validation"
)

var _ Service = (*service.Service)(nil)

type stubService struct {
	gotOwner string
	gotID    string
	gotInput model.PaymentInput
	gotPatch model.PaymentPatch
	gotTask  model.TaskInput
	gotState model.TaskStatus

	paymentResp *model.Payment
	paymentErr  error

	deleteErr error

	paymentsResp []model.Payment
	paymentsErr  error

	invoiceResp *model.Invoice
	invoiceErr  error

	taskResp *model.Task
	taskErr  error

	progressResp int
	progressErr  error

	dashboardResp *model.Dashboard
	dashboardErr  error

	alertsResp *model.ExpiryAlerts
	alertsErr  error
}

func (s *stubService) CreatePayment(ctx context.Context, ownerID string, in model.PaymentInput) (*model.Payment, error) {
	s.gotOwner, s.gotInput = ownerID, in
	return s.paymentResp, s.paymentErr
}

func (s *stubService) UpdatePayment(ctx context.Context, ownerID, paymentID string, patch model.PaymentPatch) (*model.Payment, error) {
	s.gotOwner, s.gotID, s.gotPatch = ownerID, paymentID, patch
	return s.paymentResp, s.paymentErr
}

func (s *stubService) DeletePayment(ctx context.Context, ownerID, paymentID string) error {
	s.gotOwner, s.gotID = ownerID, paymentID
	return s.deleteErr
}

func (s *stubService) GetPaymentsByProject(ctx context.Context, ownerID, projectID string) ([]model.Payment, error) {
	s.gotOwner, s.gotID = ownerID, projectID
	return s.paymentsResp, s.paymentsErr
}

func (s *stubService) ReconcileInvoice(ctx context.Context, ownerID, invoiceID string) (*model.Invoice, error) {
	s.gotOwner, s.gotID = ownerID, invoiceID
	return s.invoiceResp, s.invoiceErr
}

func (s *stubService) CreateTask(ctx context.Context, ownerID string, in model.TaskInput) (*model.Task, error) {
	s.gotOwner, s.gotTask = ownerID, in
	return s.taskResp, s.taskErr
}

func (s *stubService) UpdateTaskStatus(ctx context.Context, ownerID, taskID string, status model.TaskStatus) (*model.Task, error) {
	s.gotOwner, s.gotID, s.gotState = ownerID, taskID, status
	return s.taskResp, s.taskErr
}

func (s *stubService) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	s.gotOwner, s.gotID = ownerID, taskID
	return s.deleteErr
}

func (s *stubService) RecalculateProgress(ctx context.Context, ownerID, projectID string) (int, error) {
	s.gotOwner, s.gotID = ownerID, projectID
	return s.progressResp, s.progressErr
}

func (s *stubService) GetDashboard(ctx context.Context, ownerID string) (*model.Dashboard, error) {
	s.gotOwner = ownerID
	return s.dashboardResp, s.dashboardErr
}

func (s *stubService) GetExpiryAlerts(ctx context.Context, ownerID string) (*model.ExpiryAlerts, error) {
	s.gotOwner = ownerID
	return s.alertsResp, s.alertsErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

// serve прогоняет запрос через полный роутер с токеном владельца.
func serve(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	token, err := h.authMiddleware.IssueToken("owner-1", time.Hour)
	require.NoError(t, err)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec
}

func samplePayment() *model.Payment {
	at := time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC)
	invoiceID := "inv-1"
	return &model.Payment{
		ID:          "pay-1",
		ProjectID:   "proj-1",
		InvoiceID:   &invoiceID,
		Amount:      40000,
		Status:      model.PaymentStatusPaid,
		PaymentDate: at,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func TestCreatePayment_Created(t *testing.T) {
	svc := &stubService{paymentResp: samplePayment()}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodPost, "/api/payments",
		`{"project_id":"proj-1","invoice_id":"inv-1","amount":"400.00","status":"PAID"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "owner-1", svc.gotOwner)
	assert.Equal(t, int64(40000), svc.gotInput.Amount)
	assert.Equal(t, model.PaymentStatusPaid, svc.gotInput.Status)
	require.NotNil(t, svc.gotInput.InvoiceID)
	assert.Equal(t, "inv-1", *svc.gotInput.InvoiceID)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pay-1", resp["id"])
	assert.Equal(t, "400", resp["amount"])
	assert.Equal(t, "2026-05-10T12:00:00Z", resp["payment_date"])
}

func TestCreatePayment_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{name: "malformed json", body: `{"project_id":`},
		{name: "fractional cents", body: `{"project_id":"proj-1","amount":"1.005","status":"PAID"}`},
		{name: "validation", body: `{"project_id":"proj-1","amount":"1","status":"NOPE"}`, err: fmt.Errorf("%w: unknown status", validation.ErrInvalid)},
		{name: "amount above int64", body: `{"project_id":"proj-1","amount":"200000000000000000","status":"PAID"}`},
		{name: "amount below int64", body: `{"project_id":"proj-1","amount":"-200000000000000000","status":"PAID"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{paymentErr: tt.err}
			h := newTestHandler(t, svc)

			rec := serve(t, h, http.MethodPost, "/api/payments", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			if tt.err == nil {
				assert.Empty(t, svc.gotOwner, "service must not be called")
			}
		})
	}
}

func TestUpdatePayment_AmountOutOfRange(t *testing.T) {
	svc := &stubService{paymentResp: samplePayment()}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodPut, "/api/payments/pay-1", `{"amount":"200000000000000000"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.gotID)
}

func TestCreatePayment_OversizedAmountLeavesProjectUntouched(t *testing.T) {
	repo := repository.NewMemoryRepository()
	repo.AddProject(model.Project{
		ID:         "proj-1",
		OwnerID:    "owner-1",
		Name:       "Landing",
		Status:     model.ProjectStatusActive,
		TotalValue: 100000,
	})
	h := newTestHandler(t, service.NewService(repo, zap.NewNop()))

	rec := serve(t, h, http.MethodPost, "/api/payments",
		`{"project_id":"proj-1","amount":"200000000000000000","status":"PAID"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	project, err := repo.GetProject(context.Background(), "owner-1", "proj-1")
	require.NoError(t, err)
	assert.Zero(t, project.PaidAmount)

	payments, err := repo.GetPaymentsByProject(context.Background(), "owner-1", "proj-1")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestUpdatePayment_PassesPatch(t *testing.T) {
	svc := &stubService{paymentResp: samplePayment()}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodPut, "/api/payments/pay-1", `{"amount":"450.50","invoice_id":""}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pay-1", svc.gotID)
	require.NotNil(t, svc.gotPatch.Amount)
	assert.Equal(t, int64(45050), *svc.gotPatch.Amount)
	require.NotNil(t, svc.gotPatch.InvoiceID)
	assert.Empty(t, *svc.gotPatch.InvoiceID)
	assert.Nil(t, svc.gotPatch.Status)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: fmt.Errorf("payment: %w", repository.ErrNotFound), want: http.StatusNotFound},
		{name: "invalid", err: fmt.Errorf("%w: bad", validation.ErrInvalid), want: http.StatusBadRequest},
		{name: "consistency", err: fmt.Errorf("ledger: %w", repository.ErrConsistency), want: http.StatusInternalServerError},
		{name: "unexpected", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{deleteErr: tt.err})

			rec := serve(t, h, http.MethodDelete, "/api/payments/pay-1", "")

			assert.Equal(t, tt.want, rec.Code)
			assert.NotContains(t, rec.Body.String(), "ledger")
		})
	}
}

func TestDeletePayment_NoContent(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodDelete, "/api/payments/pay-9", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "pay-9", svc.gotID)
}

func TestGetProjectPayments_EmptyArray(t *testing.T) {
	svc := &stubService{paymentsResp: []model.Payment{}}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodGet, "/api/projects/proj-1/payments", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "proj-1", svc.gotID)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestReconcileInvoice_JSONResponse(t *testing.T) {
	svc := &stubService{invoiceResp: &model.Invoice{
		ID:          "inv-1",
		ProjectID:   "proj-1",
		Number:      "INV-001",
		TotalAmount: 100000,
		PaidAmount:  40000,
		Status:      model.InvoiceStatusPartial,
	}}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodPost, "/api/invoices/inv-1/reconcile", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"id":"inv-1","project_id":"proj-1","invoice_number":"INV-001",
		"total_amount":"1000","paid_amount":"400","status":"PARTIAL"
	}`, rec.Body.String())
}

func TestTaskRoutes(t *testing.T) {
	completedAt := time.Date(2026, time.May, 15, 10, 0, 0, 0, time.UTC)
	svc := &stubService{taskResp: &model.Task{
		ID:          "task-1",
		ProjectID:   "proj-1",
		Title:       "Design",
		Status:      model.TaskStatusCompleted,
		CompletedAt: &completedAt,
	}}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodPost, "/api/tasks", `{"project_id":"proj-1","title":"Design","status":"TODO"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.TaskInput{ProjectID: "proj-1", Title: "Design", Status: model.TaskStatusTodo}, svc.gotTask)

	rec = serve(t, h, http.MethodPatch, "/api/tasks/task-1", `{"status":"COMPLETED"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TaskStatusCompleted, svc.gotState)
	assert.Contains(t, rec.Body.String(), `"completed_at":"2026-05-15T10:00:00Z"`)

	rec = serve(t, h, http.MethodDelete, "/api/tasks/task-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecalculateProgress(t *testing.T) {
	svc := &stubService{progressResp: 67}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodPost, "/api/projects/proj-1/progress", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"project_id":"proj-1","progress":67}`, rec.Body.String())
}

func TestGetDashboard_MoneyAsDecimal(t *testing.T) {
	svc := &stubService{dashboardResp: &model.Dashboard{
		ProjectsByStatus: map[model.ProjectStatus]int{model.ProjectStatusActive: 1},
		TasksByStatus:    map[model.TaskStatus]int{},
		Finance: model.FinanceSummary{
			TotalValue:    100000,
			PaidAmount:    40000,
			PendingAmount: 60000,
		},
		UpcomingDeadlines: []model.DeadlineItem{},
		Alerts:            model.ExpiryAlerts{Domains: []model.ExpiringItem{}, Hostings: []model.ExpiringItem{}},
		RecentActivities:  []model.Activity{},
		IncomeSeries:      []model.IncomeBucket{{Year: 2026, Month: time.May, Amount: 40000}},
		GeneratedAt:       time.Date(2026, time.May, 15, 10, 0, 0, 0, time.UTC),
	}}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Finance struct {
			PendingAmount string `json:"pending_amount"`
		} `json:"finance"`
		IncomeSeries []struct {
			Month  int    `json:"month"`
			Amount string `json:"amount"`
		} `json:"income_series"`
		ProjectsByStatus map[string]int `json:"projects_by_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "600", resp.Finance.PendingAmount)
	require.Len(t, resp.IncomeSeries, 1)
	assert.Equal(t, 5, resp.IncomeSeries[0].Month)
	assert.Equal(t, "400", resp.IncomeSeries[0].Amount)
	assert.Equal(t, 1, resp.ProjectsByStatus["ACTIVE"])
}

func TestGetExpiryAlerts(t *testing.T) {
	svc := &stubService{alertsResp: &model.ExpiryAlerts{
		Domains:      []model.ExpiringItem{{ID: "d1", Label: "example.com", ProjectID: "proj-1", ProjectName: "Site"}},
		Hostings:     []model.ExpiringItem{},
		DomainsCount: 1,
	}}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodGet, "/api/alerts/expiring", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"domains_count":1`)
	assert.Contains(t, rec.Body.String(), `"hostings":[]`)
}

func TestAPI_RequiresToken(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_UnauthorizedWithoutOwner(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	rec := httptest.NewRecorder()
	h.GetDashboard(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_OwnerFromContext(t *testing.T) {
	svc := &stubService{alertsResp: &model.ExpiryAlerts{}}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/expiring", nil)
	req = req.WithContext(middleware.WithOwnerID(req.Context(), "owner-ctx"))
	rec := httptest.NewRecorder()
	h.GetExpiryAlerts(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-ctx", svc.gotOwner)
}

func TestRouter_NotFoundAndMetrics(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
