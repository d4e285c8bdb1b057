package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/projectdesk/internal/model"
	"github.com/mmeshcher/projectdesk/internal/money"
)

type paymentRequest struct {
	ProjectID   string          `json:"project_id"`
	InvoiceID   *string         `json:"invoice_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Description string          `json:"description"`
}

func (r paymentRequest) toInput() (model.PaymentInput, error) {
	amount, err := money.ToMinor(r.Amount)
	if err != nil {
		return model.PaymentInput{}, err
	}
	return model.PaymentInput{
		ProjectID:   r.ProjectID,
		InvoiceID:   r.InvoiceID,
		Amount:      amount,
		Status:      model.PaymentStatus(r.Status),
		PaymentDate: r.PaymentDate,
		Description: r.Description,
	}, nil
}

// paymentPatchRequest: пустая строка в invoice_id отвязывает платёж от счёта.
type paymentPatchRequest struct {
	InvoiceID   *string          `json:"invoice_id"`
	Amount      *decimal.Decimal `json:"amount"`
	Status      *string          `json:"status"`
	PaymentDate *time.Time       `json:"payment_date"`
	Description *string          `json:"description"`
}

func (r paymentPatchRequest) toPatch() (model.PaymentPatch, error) {
	patch := model.PaymentPatch{
		InvoiceID:   r.InvoiceID,
		PaymentDate: r.PaymentDate,
		Description: r.Description,
	}
	if r.Amount != nil {
		amount, err := money.ToMinor(*r.Amount)
		if err != nil {
			return model.PaymentPatch{}, err
		}
		patch.Amount = &amount
	}
	if r.Status != nil {
		status := model.PaymentStatus(*r.Status)
		patch.Status = &status
	}
	return patch, nil
}

type paymentResponse struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	InvoiceID   *string         `json:"invoice_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	PaymentDate string          `json:"payment_date"`
	Description string          `json:"description"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

func newPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		ProjectID:   p.ProjectID,
		InvoiceID:   p.InvoiceID,
		Amount:      money.FromMinor(p.Amount),
		Status:      string(p.Status),
		PaymentDate: p.PaymentDate.Format(time.RFC3339),
		Description: p.Description,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}

type invoiceResponse struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Number      string          `json:"invoice_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Status      string          `json:"status"`
}

func newInvoiceResponse(i *model.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:          i.ID,
		ProjectID:   i.ProjectID,
		Number:      i.Number,
		TotalAmount: money.FromMinor(i.TotalAmount),
		PaidAmount:  money.FromMinor(i.PaidAmount),
		Status:      string(i.Status),
	}
}

type taskRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
}

type taskStatusRequest struct {
	Status string `json:"status"`
}

type taskResponse struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Title       string  `json:"title"`
	Status      string  `json:"status"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

func newTaskResponse(t *model.Task) taskResponse {
	resp := taskResponse{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		Title:     t.Title,
		Status:    string(t.Status),
	}
	if t.CompletedAt != nil {
		v := t.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &v
	}
	return resp
}

type progressResponse struct {
	ProjectID string `json:"project_id"`
	Progress  int    `json:"progress"`
}

type financeResponse struct {
	TotalValue           decimal.Decimal `json:"total_value"`
	PaidAmount           decimal.Decimal `json:"paid_amount"`
	PendingAmount        decimal.Decimal `json:"pending_amount"`
	MonthlyIncome        decimal.Decimal `json:"monthly_income"`
	MonthlyPaymentsCount int             `json:"monthly_payments_count"`
}

type incomeBucketResponse struct {
	Year   int             `json:"year"`
	Month  int             `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

type dashboardResponse struct {
	Overview          model.Overview              `json:"overview"`
	ProjectsByStatus  map[model.ProjectStatus]int `json:"projects_by_status"`
	TasksByStatus     map[model.TaskStatus]int    `json:"tasks_by_status"`
	Finance           financeResponse             `json:"finance"`
	UpcomingDeadlines []model.DeadlineItem        `json:"upcoming_deadlines"`
	Alerts            model.ExpiryAlerts          `json:"alerts"`
	RecentActivities  []model.Activity            `json:"recent_activities"`
	IncomeSeries      []incomeBucketResponse      `json:"income_series"`
	GeneratedAt       string                      `json:"generated_at"`
}

func newDashboardResponse(d *model.Dashboard) dashboardResponse {
	series := make([]incomeBucketResponse, 0, len(d.IncomeSeries))
	for _, b := range d.IncomeSeries {
		series = append(series, incomeBucketResponse{
			Year:   b.Year,
			Month:  int(b.Month),
			Amount: money.FromMinor(b.Amount),
		})
	}

	return dashboardResponse{
		Overview:         d.Overview,
		ProjectsByStatus: d.ProjectsByStatus,
		TasksByStatus:    d.TasksByStatus,
		Finance: financeResponse{
			TotalValue:           money.FromMinor(d.Finance.TotalValue),
			PaidAmount:           money.FromMinor(d.Finance.PaidAmount),
			PendingAmount:        money.FromMinor(d.Finance.PendingAmount),
			MonthlyIncome:        money.FromMinor(d.Finance.MonthlyIncome),
			MonthlyPaymentsCount: d.Finance.MonthlyPaymentsCount,
		},
		UpcomingDeadlines: d.UpcomingDeadlines,
		Alerts:            d.Alerts,
		RecentActivities:  d.RecentActivities,
		IncomeSeries:      series,
		GeneratedAt:       d.GeneratedAt.Format(time.RFC3339),
	}
}
