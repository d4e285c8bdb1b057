package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mmeshcher/projectdesk/internal/model"
)

var (
	// ErrNotFound возвращается, если запись отсутствует, удалена или принадлежит другому пользователю.
	ErrNotFound = errors.New("not found")
	// ErrConsistency возвращается, если изменение нарушает инвариант денежных итогов или журнала доходов.
	ErrConsistency = errors.New("financial consistency violated")
)

// Tx описывает единицу работы: все изменения внутри неё фиксируются вместе или не фиксируются вовсе.
type Tx interface {
	// LockProject блокирует проект до конца транзакции и возвращает его текущее состояние.
	LockProject(ctx context.Context, ownerID, projectID string) (*model.Project, error)
	AddProjectPaidAmount(ctx context.Context, projectID string, delta int64) (int64, error)
	SetProjectProgress(ctx context.Context, projectID string, progress int) error

	GetPayment(ctx context.Context, ownerID, paymentID string) (*model.Payment, error)
	InsertPayment(ctx context.Context, p *model.Payment) error
	UpdatePayment(ctx context.Context, p *model.Payment) error
	SoftDeletePayment(ctx context.Context, paymentID string, at time.Time) error

	InsertIncome(ctx context.Context, in *model.Income) error
	UpdateIncome(ctx context.Context, in *model.Income) error
	DeleteIncomeByPayment(ctx context.Context, paymentID string) (int64, error)
	CountIncomeByPayment(ctx context.Context, paymentID string) (int, error)

	GetInvoice(ctx context.Context, ownerID, invoiceID string) (*model.Invoice, error)
	SumPaidByInvoice(ctx context.Context, invoiceID string) (int64, error)
	UpdateInvoicePayment(ctx context.Context, invoiceID string, paid int64, status model.InvoiceStatus) error

	GetTask(ctx context.Context, ownerID, taskID string) (*model.Task, error)
	InsertTask(ctx context.Context, t *model.Task) error
	UpdateTask(ctx context.Context, t *model.Task) error
	SoftDeleteTask(ctx context.Context, taskID string, at time.Time) error
	ListTaskStatuses(ctx context.Context, projectID string) ([]model.TaskStatus, error)
}
