package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/projectdesk/internal/metrics"
	"github.com/mmeshcher/projectdesk/internal/model"
	"github.com/mmeshcher/projectdesk/internal/repository"
	"github.com/mmeshcher/projectdesk/internal/validation"
)

// CreatePayment создаёт платёж. Оплаченный платёж сразу учитывается в итогах проекта,
// журнале доходов и привязанном счёте.
func (s *Service) CreatePayment(ctx context.Context, ownerID string, in model.PaymentInput) (*model.Payment, error) {
	if err := validation.PaymentInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Payment{
		ID:          uuid.NewString(),
		ProjectID:   in.ProjectID,
		InvoiceID:   in.InvoiceID,
		Amount:      in.Amount,
		Status:      in.Status,
		PaymentDate: now,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.PaymentDate != nil {
		p.PaymentDate = *in.PaymentDate
	}

	unlock := s.locks.Lock(p.ProjectID)
	defer unlock()

	transition := metrics.TransitionNone
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockProject(ctx, ownerID, p.ProjectID); err != nil {
			return err
		}
		if p.InvoiceID != nil {
			if err := checkInvoiceLink(ctx, tx, ownerID, p.ProjectID, *p.InvoiceID); err != nil {
				return err
			}
		}

		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}

		if p.IsPaid() {
			if _, err := tx.AddProjectPaidAmount(ctx, p.ProjectID, p.Amount); err != nil {
				return err
			}
			if err := tx.InsertIncome(ctx, s.incomeFor(p)); err != nil {
				return err
			}
			transition = metrics.TransitionRecognized

			if p.InvoiceID != nil {
				if _, err := s.reconcileInvoiceTx(ctx, tx, ownerID, *p.InvoiceID); err != nil {
					return err
				}
			}
		}

		return verifyLedger(ctx, tx, ownerID, p)
	})
	if err != nil {
		return nil, s.txFailed("create payment", ownerID, err)
	}

	s.paymentCommitted("payment created", ownerID, p, transition)
	s.invalidate(ctx, ownerID)

	return p, nil
}

// UpdatePayment применяет частичное обновление платежа и пересчитывает всё, что зависит
// от перехода в статус PAID или из него.
func (s *Service) UpdatePayment(ctx context.Context, ownerID, paymentID string, patch model.PaymentPatch) (*model.Payment, error) {
	if err := validation.PaymentPatch(patch); err != nil {
		return nil, err
	}

	current, err := s.repo.GetPayment(ctx, ownerID, paymentID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(current.ProjectID)
	defer unlock()

	var (
		updated    model.Payment
		transition = metrics.TransitionNone
	)
	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockProject(ctx, ownerID, current.ProjectID); err != nil {
			return err
		}

		old, err := tx.GetPayment(ctx, ownerID, paymentID)
		if err != nil {
			return err
		}

		updated = patch.Apply(*old)
		updated.UpdatedAt = s.now()

		linkChanged := !sameInvoice(old.InvoiceID, updated.InvoiceID)
		if linkChanged && updated.InvoiceID != nil {
			if err := checkInvoiceLink(ctx, tx, ownerID, updated.ProjectID, *updated.InvoiceID); err != nil {
				return err
			}
		}

		if err := tx.UpdatePayment(ctx, &updated); err != nil {
			return err
		}

		wasPaid := old.Status == model.PaymentStatusPaid
		willBePaid := updated.Status == model.PaymentStatusPaid
		amountChanged := old.Amount != updated.Amount

		switch {
		case !wasPaid && willBePaid:
			if _, err := tx.AddProjectPaidAmount(ctx, updated.ProjectID, updated.Amount); err != nil {
				return err
			}
			if err := tx.InsertIncome(ctx, s.incomeFor(&updated)); err != nil {
				return err
			}
			transition = metrics.TransitionRecognized

		case wasPaid && !willBePaid:
			// Снимается ровно то, что было добавлено при признании.
			if _, err := tx.AddProjectPaidAmount(ctx, old.ProjectID, -old.Amount); err != nil {
				return err
			}
			if _, err := tx.DeleteIncomeByPayment(ctx, old.ID); err != nil {
				return err
			}
			transition = metrics.TransitionDerecognized

		case wasPaid && willBePaid:
			if amountChanged {
				if _, err := tx.AddProjectPaidAmount(ctx, updated.ProjectID, updated.Amount-old.Amount); err != nil {
					return err
				}
			}
			if amountChanged || !old.PaymentDate.Equal(updated.PaymentDate) {
				if err := tx.UpdateIncome(ctx, s.incomeFor(&updated)); err != nil {
					return err
				}
				transition = metrics.TransitionAdjusted
			}
		}

		paidEffect := wasPaid != willBePaid || (willBePaid && amountChanged)
		if linkChanged || paidEffect {
			for _, id := range affectedInvoices(old.InvoiceID, updated.InvoiceID) {
				// Новая привязка уже проверена, удалённые счета не пересчитываются.
				_, err := s.reconcileInvoiceTx(ctx, tx, ownerID, id)
				if err != nil && !errors.Is(err, repository.ErrNotFound) {
					return err
				}
			}
		}

		return verifyLedger(ctx, tx, ownerID, &updated)
	})
	if err != nil {
		return nil, s.txFailed("update payment", ownerID, err)
	}

	s.paymentCommitted("payment updated", ownerID, &updated, transition)
	s.invalidate(ctx, ownerID)

	return &updated, nil
}

// DeletePayment помечает платёж удалённым. Для оплаченного платежа снимается сумма
// с проекта, удаляется запись о доходе и пересчитывается счёт.
func (s *Service) DeletePayment(ctx context.Context, ownerID, paymentID string) error {
	current, err := s.repo.GetPayment(ctx, ownerID, paymentID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(current.ProjectID)
	defer unlock()

	var (
		deleted    model.Payment
		transition = metrics.TransitionNone
	)
	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockProject(ctx, ownerID, current.ProjectID); err != nil {
			return err
		}

		old, err := tx.GetPayment(ctx, ownerID, paymentID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.SoftDeletePayment(ctx, old.ID, now); err != nil {
			return err
		}
		deleted = *old
		deleted.DeletedAt = &now
		deleted.UpdatedAt = now

		if old.IsPaid() {
			if _, err := tx.AddProjectPaidAmount(ctx, old.ProjectID, -old.Amount); err != nil {
				return err
			}
			if _, err := tx.DeleteIncomeByPayment(ctx, old.ID); err != nil {
				return err
			}
			transition = metrics.TransitionDerecognized

			if old.InvoiceID != nil {
				_, err := s.reconcileInvoiceTx(ctx, tx, ownerID, *old.InvoiceID)
				if err != nil && !errors.Is(err, repository.ErrNotFound) {
					return err
				}
			}
		}

		return verifyLedger(ctx, tx, ownerID, &deleted)
	})
	if err != nil {
		return s.txFailed("delete payment", ownerID, err)
	}

	s.paymentCommitted("payment deleted", ownerID, &deleted, transition)
	s.invalidate(ctx, ownerID)

	return nil
}

// GetPaymentsByProject возвращает платежи проекта пользователя.
func (s *Service) GetPaymentsByProject(ctx context.Context, ownerID, projectID string) ([]model.Payment, error) {
	var payments []model.Payment
	err := s.read(ctx, "payments_by_project", func(ctx context.Context) error {
		if _, err := s.repo.GetProject(ctx, ownerID, projectID); err != nil {
			return err
		}
		var err error
		payments, err = s.repo.GetPaymentsByProject(ctx, ownerID, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Service) incomeFor(p *model.Payment) *model.Income {
	return &model.Income{
		ID:        uuid.NewString(),
		ProjectID: p.ProjectID,
		PaymentID: p.ID,
		Amount:    p.Amount,
		Month:     int(p.PaymentDate.Month()),
		Year:      p.PaymentDate.Year(),
		CreatedAt: s.now(),
	}
}

// verifyLedger перепроверяет инварианты после изменения платежа внутри той же транзакции.
func verifyLedger(ctx context.Context, tx repository.Tx, ownerID string, p *model.Payment) error {
	project, err := tx.LockProject(ctx, ownerID, p.ProjectID)
	if err != nil {
		return err
	}
	if project.PaidAmount < 0 {
		return fmt.Errorf("%w: project %s paid amount is %d", repository.ErrConsistency, project.ID, project.PaidAmount)
	}

	count, err := tx.CountIncomeByPayment(ctx, p.ID)
	if err != nil {
		return err
	}

	want := 0
	if p.IsPaid() {
		want = 1
	}
	if count != want {
		return fmt.Errorf("%w: payment %s has %d income entries, want %d", repository.ErrConsistency, p.ID, count, want)
	}

	return nil
}

func checkInvoiceLink(ctx context.Context, tx repository.Tx, ownerID, projectID, invoiceID string) error {
	inv, err := tx.GetInvoice(ctx, ownerID, invoiceID)
	if err != nil {
		return err
	}
	if inv.ProjectID != projectID {
		return fmt.Errorf("%w: invoice %s belongs to another project", repository.ErrNotFound, invoiceID)
	}
	return nil
}

func sameInvoice(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func affectedInvoices(before, after *string) []string {
	var ids []string
	if before != nil {
		ids = append(ids, *before)
	}
	if after != nil && !sameInvoice(before, after) {
		ids = append(ids, *after)
	}
	return ids
}

// txFailed логирует нарушение инвариантов и возвращает ошибку без изменений.
func (s *Service) txFailed(op, ownerID string, err error) error {
	if errors.Is(err, repository.ErrConsistency) {
		metrics.IncrementConsistencyFailure()
		s.logger.Error("financial consistency check failed, transaction rolled back",
			zap.String("operation", op),
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
	}
	return err
}

func (s *Service) paymentCommitted(msg, ownerID string, p *model.Payment, transition string) {
	metrics.IncrementPaymentTransition(transition)
	s.logger.Debug(msg,
		zap.String("owner_id", ownerID),
		zap.String("payment_id", p.ID),
		zap.String("project_id", p.ProjectID),
		zap.String("status", string(p.Status)),
		zap.Int64("amount", p.Amount),
		zap.String("transition", transition),
	)
}
