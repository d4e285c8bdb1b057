package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/projectdesk/internal/model"
	"github.com/mmeshcher/projectdesk/internal/repository"
)

func TestNextInvoiceStatus(t *testing.T) {
	tests := []struct {
		name    string
		current model.InvoiceStatus
		paid    int64
		total   int64
		want    model.InvoiceStatus
	}{
		{name: "fully paid", current: model.InvoiceStatusPending, paid: 1000, total: 1000, want: model.InvoiceStatusPaid},
		{name: "overpaid", current: model.InvoiceStatusPartial, paid: 1200, total: 1000, want: model.InvoiceStatusPaid},
		{name: "partial", current: model.InvoiceStatusPending, paid: 1, total: 1000, want: model.InvoiceStatusPartial},
		{name: "partial from overdue", current: model.InvoiceStatusOverdue, paid: 10, total: 1000, want: model.InvoiceStatusPartial},
		{name: "nothing paid keeps pending", current: model.InvoiceStatusPending, paid: 0, total: 1000, want: model.InvoiceStatusPending},
		{name: "nothing paid keeps draft", current: model.InvoiceStatusDraft, paid: 0, total: 1000, want: model.InvoiceStatusDraft},
		{name: "nothing paid keeps overdue", current: model.InvoiceStatusOverdue, paid: 0, total: 1000, want: model.InvoiceStatusOverdue},
		{name: "refund of paid falls back", current: model.InvoiceStatusPaid, paid: 0, total: 1000, want: model.InvoiceStatusPending},
		{name: "refund of partial falls back", current: model.InvoiceStatusPartial, paid: 0, total: 1000, want: model.InvoiceStatusPending},
		{name: "zero total without payments", current: model.InvoiceStatusPending, paid: 0, total: 0, want: model.InvoiceStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextInvoiceStatus(tt.current, tt.paid, tt.total)
			if got != tt.want {
				t.Fatalf("nextInvoiceStatus(%s, %d, %d) = %s, want %s", tt.current, tt.paid, tt.total, got, tt.want)
			}
		})
	}
}

func TestReconcileInvoiceRepairsDriftAndIsIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedProject(repo, "P", 1000)
	seedInvoice(repo, "I", "P", 1000)

	deleted := testNow
	repo.AddPayment(model.Payment{ID: "a", ProjectID: "P", InvoiceID: ptr("I"), Amount: 300, Status: model.PaymentStatusPaid, PaymentDate: testNow})
	repo.AddPayment(model.Payment{ID: "b", ProjectID: "P", InvoiceID: ptr("I"), Amount: 200, Status: model.PaymentStatusPaid, PaymentDate: testNow})
	repo.AddPayment(model.Payment{ID: "c", ProjectID: "P", InvoiceID: ptr("I"), Amount: 900, Status: model.PaymentStatusPending, PaymentDate: testNow})
	repo.AddPayment(model.Payment{ID: "d", ProjectID: "P", InvoiceID: ptr("I"), Amount: 900, Status: model.PaymentStatusPaid, PaymentDate: testNow, DeletedAt: &deleted})

	first, err := svc.ReconcileInvoice(ctx, owner, "I")
	require.NoError(t, err)
	assert.Equal(t, int64(500), first.PaidAmount)
	assert.Equal(t, model.InvoiceStatusPartial, first.Status)

	second, err := svc.ReconcileInvoice(ctx, owner, "I")
	require.NoError(t, err)
	assert.Equal(t, first.PaidAmount, second.PaidAmount)
	assert.Equal(t, first.Status, second.Status)

	stored, _ := repo.Invoice("I")
	assert.Equal(t, int64(500), stored.PaidAmount)
	assert.Equal(t, model.InvoiceStatusPartial, stored.Status)
}

func TestReconcileInvoiceNotOwned(t *testing.T) {
	svc, repo := newTestService(t)
	seedProject(repo, "P", 1000)
	seedInvoice(repo, "I", "P", 1000)

	_, err := svc.ReconcileInvoice(context.Background(), "intruder", "I")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.ReconcileInvoice(context.Background(), owner, "nope")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
