package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/projectdesk/internal/model"
	"github.com/mmeshcher/projectdesk/internal/repository"
)

// ReconcileInvoice пересчитывает оплаченную сумму и статус счёта по привязанным оплаченным платежам.
// Повторный вызов без изменений платежей даёт тот же результат.
func (s *Service) ReconcileInvoice(ctx context.Context, ownerID, invoiceID string) (*model.Invoice, error) {
	current, err := s.repo.GetInvoice(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(current.ProjectID)
	defer unlock()

	var inv *model.Invoice
	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockProject(ctx, ownerID, current.ProjectID); err != nil {
			return err
		}
		var err error
		inv, err = s.reconcileInvoiceTx(ctx, tx, ownerID, invoiceID)
		return err
	})
	if err != nil {
		return nil, s.txFailed("reconcile invoice", ownerID, err)
	}

	s.invalidate(ctx, ownerID)

	return inv, nil
}

func (s *Service) reconcileInvoiceTx(ctx context.Context, tx repository.Tx, ownerID, invoiceID string) (*model.Invoice, error) {
	inv, err := tx.GetInvoice(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}

	paid, err := tx.SumPaidByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	status := nextInvoiceStatus(inv.Status, paid, inv.TotalAmount)
	if paid == inv.PaidAmount && status == inv.Status {
		return inv, nil
	}

	if err := tx.UpdateInvoicePayment(ctx, invoiceID, paid, status); err != nil {
		return nil, err
	}

	s.logger.Debug("invoice reconciled",
		zap.String("invoice_id", invoiceID),
		zap.Int64("paid_amount", paid),
		zap.String("status", string(status)),
	)

	inv.PaidAmount = paid
	inv.Status = status
	return inv, nil
}

// nextInvoiceStatus выводит статус счёта из оплаченной суммы.
// Без оплат вычисляемые статусы возвращаются к PENDING, остальные сохраняются.
func nextInvoiceStatus(current model.InvoiceStatus, paid, total int64) model.InvoiceStatus {
	switch {
	case paid > 0 && paid >= total:
		return model.InvoiceStatusPaid
	case paid > 0:
		return model.InvoiceStatusPartial
	case current == model.InvoiceStatusPaid || current == model.InvoiceStatusPartial:
		return model.InvoiceStatusPending
	default:
		return current
	}
}
