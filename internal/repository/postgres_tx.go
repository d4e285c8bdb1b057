package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/projectdesk/internal/model"
)

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockProject(ctx context.Context, ownerID, projectID string) (*model.Project, error) {
	p, err := scanProject(t.tx.QueryRow(ctx,
		`SELECT `+projectColumns+`
		 FROM projects p
		 WHERE p.id = $1 AND p.owner_id = $2 AND p.deleted_at IS NULL
		 FOR UPDATE`,
		projectID, ownerID,
	))
	if err != nil {
		return nil, notFound(err, "project")
	}
	return p, nil
}

func (t *pgTx) AddProjectPaidAmount(ctx context.Context, projectID string, delta int64) (int64, error) {
	var paid int64
	err := t.tx.QueryRow(ctx,
		`UPDATE projects SET paid_amount = paid_amount + $2
		 WHERE id = $1
		 RETURNING paid_amount`,
		projectID, delta,
	).Scan(&paid)
	if err != nil {
		return 0, classify(fmt.Errorf("update project paid amount: %w", err))
	}
	return paid, nil
}

func (t *pgTx) SetProjectProgress(ctx context.Context, projectID string, progress int) error {
	_, err := t.tx.Exec(ctx, `UPDATE projects SET progress = $2 WHERE id = $1`, projectID, progress)
	if err != nil {
		return classify(fmt.Errorf("update project progress: %w", err))
	}
	return nil
}

func (t *pgTx) GetPayment(ctx context.Context, ownerID, paymentID string) (*model.Payment, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments pay
		 JOIN projects p ON p.id = pay.project_id
		 WHERE pay.id = $1 AND p.owner_id = $2 AND p.deleted_at IS NULL AND pay.deleted_at IS NULL
		 FOR UPDATE OF pay`,
		paymentID, ownerID,
	))
	if err != nil {
		return nil, notFound(err, "payment")
	}
	return p, nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p *model.Payment) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO payments (id, project_id, invoice_id, amount, status, payment_date, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.ProjectID, p.InvoiceID, p.Amount, string(p.Status), p.PaymentDate, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert payment: %w", err))
	}
	return nil
}

func (t *pgTx) UpdatePayment(ctx context.Context, p *model.Payment) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE payments
		 SET invoice_id = $2, amount = $3, status = $4, payment_date = $5, description = $6, updated_at = $7
		 WHERE id = $1 AND deleted_at IS NULL`,
		p.ID, p.InvoiceID, p.Amount, string(p.Status), p.PaymentDate, p.Description, p.UpdatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("update payment: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment", ErrNotFound)
	}
	return nil
}

func (t *pgTx) SoftDeletePayment(ctx context.Context, paymentID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE payments SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		paymentID, at,
	)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment", ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertIncome(ctx context.Context, in *model.Income) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO incomes (id, project_id, payment_id, amount, month, year, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		in.ID, in.ProjectID, in.PaymentID, in.Amount, in.Month, in.Year, in.CreatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert income: %w", err))
	}
	return nil
}

func (t *pgTx) UpdateIncome(ctx context.Context, in *model.Income) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE incomes SET amount = $2, month = $3, year = $4 WHERE payment_id = $1`,
		in.PaymentID, in.Amount, in.Month, in.Year,
	)
	if err != nil {
		return classify(fmt.Errorf("update income: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: income for payment %s missing", ErrConsistency, in.PaymentID)
	}
	return nil
}

func (t *pgTx) DeleteIncomeByPayment(ctx context.Context, paymentID string) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM incomes WHERE payment_id = $1`, paymentID)
	if err != nil {
		return 0, fmt.Errorf("delete income: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) CountIncomeByPayment(ctx context.Context, paymentID string) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM incomes WHERE payment_id = $1`, paymentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count income: %w", err)
	}
	return count, nil
}

func (t *pgTx) GetInvoice(ctx context.Context, ownerID, invoiceID string) (*model.Invoice, error) {
	i, err := scanInvoice(t.tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+`
		 FROM invoices i
		 JOIN projects p ON p.id = i.project_id
		 WHERE i.id = $1 AND p.owner_id = $2 AND p.deleted_at IS NULL AND i.deleted_at IS NULL
		 FOR UPDATE OF i`,
		invoiceID, ownerID,
	))
	if err != nil {
		return nil, notFound(err, "invoice")
	}
	return i, nil
}

func (t *pgTx) SumPaidByInvoice(ctx context.Context, invoiceID string) (int64, error) {
	var sum int64
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::bigint
		 FROM payments
		 WHERE invoice_id = $1 AND status = $2 AND deleted_at IS NULL`,
		invoiceID, string(model.PaymentStatusPaid),
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum invoice payments: %w", err)
	}
	return sum, nil
}

func (t *pgTx) UpdateInvoicePayment(ctx context.Context, invoiceID string, paid int64, status model.InvoiceStatus) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE invoices SET paid_amount = $2, status = $3 WHERE id = $1`,
		invoiceID, paid, string(status),
	)
	if err != nil {
		return classify(fmt.Errorf("update invoice: %w", err))
	}
	return nil
}

func (t *pgTx) GetTask(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	task, err := scanTask(t.tx.QueryRow(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks t
		 JOIN projects p ON p.id = t.project_id
		 WHERE t.id = $1 AND p.owner_id = $2 AND p.deleted_at IS NULL AND t.deleted_at IS NULL
		 FOR UPDATE OF t`,
		taskID, ownerID,
	))
	if err != nil {
		return nil, notFound(err, "task")
	}
	return task, nil
}

func (t *pgTx) InsertTask(ctx context.Context, task *model.Task) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO tasks (id, project_id, title, status, completed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		task.ID, task.ProjectID, task.Title, string(task.Status), task.CompletedAt, task.CreatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert task: %w", err))
	}
	return nil
}

func (t *pgTx) UpdateTask(ctx context.Context, task *model.Task) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE tasks SET title = $2, status = $3, completed_at = $4 WHERE id = $1 AND deleted_at IS NULL`,
		task.ID, task.Title, string(task.Status), task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (t *pgTx) SoftDeleteTask(ctx context.Context, taskID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE tasks SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, taskID, at)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: task", ErrNotFound)
	}
	return nil
}

func (t *pgTx) ListTaskStatuses(ctx context.Context, projectID string) ([]model.TaskStatus, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT status FROM tasks WHERE project_id = $1 AND deleted_at IS NULL`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("select task statuses: %w", err)
	}
	defer rows.Close()

	var res []model.TaskStatus
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan task status: %w", err)
		}
		res = append(res, model.TaskStatus(s))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
