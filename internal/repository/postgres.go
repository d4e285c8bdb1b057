// Package repository содержит реализацию доступа к данным в PostgreSQL и в памяти процесса.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/projectdesk/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	projectColumns = `p.id, p.owner_id, p.name, p.client, p.status, p.progress, p.total_value, p.paid_amount, p.deadline, p.created_at`
	paymentColumns = `pay.id, pay.project_id, pay.invoice_id, pay.amount, pay.status, pay.payment_date, pay.description, pay.created_at, pay.updated_at`
	invoiceColumns = `i.id, i.project_id, i.invoice_number, i.total_amount, i.paid_amount, i.status, i.due_date, i.created_at`
	taskColumns    = `t.id, t.project_id, t.title, t.status, t.completed_at, t.created_at`
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// InTx выполняет fn в транзакции. Любая ошибка fn откатывает все изменения.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit tx: %w", err))
	}

	return nil
}

// classify помечает нарушения ограничений денежных таблиц как ErrConsistency.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.CheckViolation, pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s (%s)", ErrConsistency, pgErr.ConstraintName, err.Error())
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

// IsTransient сообщает, что запрос можно повторить: конфликт сериализации, дедлок или обрыв соединения.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected ||
			pgerrcode.IsConnectionException(pgErr.Code)
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var (
		p      model.Project
		status string
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Client, &status, &p.Progress,
		&p.TotalValue, &p.PaidAmount, &p.Deadline, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = model.ProjectStatus(status)
	return &p, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p      model.Payment
		status string
	)
	err := row.Scan(&p.ID, &p.ProjectID, &p.InvoiceID, &p.Amount, &status,
		&p.PaymentDate, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	var (
		i      model.Invoice
		status string
	)
	err := row.Scan(&i.ID, &i.ProjectID, &i.Number, &i.TotalAmount, &i.PaidAmount,
		&status, &i.DueDate, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	i.Status = model.InvoiceStatus(status)
	return &i, nil
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var (
		t      model.Task
		status string
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &status, &t.CompletedAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = model.TaskStatus(status)
	return &t, nil
}

// GetProject возвращает проект пользователя.
func (r *PostgresRepository) GetProject(ctx context.Context, ownerID, projectID string) (*model.Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx,
		`SELECT `+projectColumns+`
		 FROM projects p
		 WHERE p.id = $1 AND p.owner_id = $2 AND p.deleted_at IS NULL`,
		projectID, ownerID,
	))
	if err != nil {
		return nil, notFound(err, "project")
	}
	return p, nil
}

// GetPayment возвращает неудалённый платёж из проекта пользователя.
func (r *PostgresRepository) GetPayment(ctx context.Context, ownerID, paymentID string) (*model.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments pay
		 JOIN projects p ON p.id = pay.project_id
		 WHERE pay.id = $1 AND p.owner_id = $2 AND p.deleted_at IS NULL AND pay.deleted_at IS NULL`,
		paymentID, ownerID,
	))
	if err != nil {
		return nil, notFound(err, "payment")
	}
	return p, nil
}

// GetPaymentsByProject возвращает неудалённые платежи проекта, новые первыми.
func (r *PostgresRepository) GetPaymentsByProject(ctx context.Context, ownerID, projectID string) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments pay
		 JOIN projects p ON p.id = pay.project_id
		 WHERE pay.project_id = $1 AND p.owner_id = $2 AND p.deleted_at IS NULL AND pay.deleted_at IS NULL
		 ORDER BY pay.payment_date DESC`,
		projectID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]model.Payment, error) {
	var res []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetInvoice возвращает неудалённый счёт из проекта пользователя.
func (r *PostgresRepository) GetInvoice(ctx context.Context, ownerID, invoiceID string) (*model.Invoice, error) {
	i, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+`
		 FROM invoices i
		 JOIN projects p ON p.id = i.project_id
		 WHERE i.id = $1 AND p.owner_id = $2 AND p.deleted_at IS NULL AND i.deleted_at IS NULL`,
		invoiceID, ownerID,
	))
	if err != nil {
		return nil, notFound(err, "invoice")
	}
	return i, nil
}

// GetTask возвращает неудалённую задачу из проекта пользователя.
func (r *PostgresRepository) GetTask(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks t
		 JOIN projects p ON p.id = t.project_id
		 WHERE t.id = $1 AND p.owner_id = $2 AND p.deleted_at IS NULL AND t.deleted_at IS NULL`,
		taskID, ownerID,
	))
	if err != nil {
		return nil, notFound(err, "task")
	}
	return t, nil
}

// CountProjectsByStatus возвращает количество проектов пользователя по статусам.
func (r *PostgresRepository) CountProjectsByStatus(ctx context.Context, ownerID string) (map[model.ProjectStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*)
		 FROM projects
		 WHERE owner_id = $1 AND deleted_at IS NULL
		 GROUP BY status`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	defer rows.Close()

	res := make(map[model.ProjectStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan project count: %w", err)
		}
		res[model.ProjectStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CountTasksByStatus возвращает количество задач во всех проектах пользователя по статусам.
func (r *PostgresRepository) CountTasksByStatus(ctx context.Context, ownerID string) (map[model.TaskStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.status, COUNT(*)
		 FROM tasks t
		 JOIN projects p ON p.id = t.project_id
		 WHERE p.owner_id = $1 AND p.deleted_at IS NULL AND t.deleted_at IS NULL
		 GROUP BY t.status`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	res := make(map[model.TaskStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan task count: %w", err)
		}
		res[model.TaskStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SumProjectFinancials возвращает сумму стоимости и оплат по всем проектам пользователя.
func (r *PostgresRepository) SumProjectFinancials(ctx context.Context, ownerID string) (int64, int64, error) {
	var totalValue, paidAmount int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_value), 0)::bigint, COALESCE(SUM(paid_amount), 0)::bigint
		 FROM projects
		 WHERE owner_id = $1 AND deleted_at IS NULL`,
		ownerID,
	).Scan(&totalValue, &paidAmount)
	if err != nil {
		return 0, 0, fmt.Errorf("sum project financials: %w", err)
	}
	return totalValue, paidAmount, nil
}

// SumPaidPayments возвращает сумму и количество оплаченных платежей с датой в [from, to).
func (r *PostgresRepository) SumPaidPayments(ctx context.Context, ownerID string, from, to time.Time) (int64, int, error) {
	var (
		sum   int64
		count int
	)
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(pay.amount), 0)::bigint, COUNT(*)
		 FROM payments pay
		 JOIN projects p ON p.id = pay.project_id
		 WHERE p.owner_id = $1 AND p.deleted_at IS NULL AND pay.deleted_at IS NULL
		   AND pay.status = $2 AND pay.payment_date >= $3 AND pay.payment_date < $4`,
		ownerID, string(model.PaymentStatusPaid), from, to,
	).Scan(&sum, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum paid payments: %w", err)
	}
	return sum, count, nil
}

// GetPaidPaymentsBetween возвращает оплаченные платежи с датой в [from, to).
func (r *PostgresRepository) GetPaidPaymentsBetween(ctx context.Context, ownerID string, from, to time.Time) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments pay
		 JOIN projects p ON p.id = pay.project_id
		 WHERE p.owner_id = $1 AND p.deleted_at IS NULL AND pay.deleted_at IS NULL
		   AND pay.status = $2 AND pay.payment_date >= $3 AND pay.payment_date < $4
		 ORDER BY pay.payment_date`,
		ownerID, string(model.PaymentStatusPaid), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select paid payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

// GetUpcomingDeadlines возвращает проекты с указанными статусами и дедлайном в [from, to].
func (r *PostgresRepository) GetUpcomingDeadlines(ctx context.Context, ownerID string, from, to time.Time, statuses []model.ProjectStatus, limit int) ([]model.Project, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+projectColumns+`
		 FROM projects p
		 WHERE p.owner_id = $1 AND p.deleted_at IS NULL
		   AND p.status = ANY($2)
		   AND p.deadline >= $3 AND p.deadline <= $4
		 ORDER BY p.deadline ASC
		 LIMIT $5`,
		ownerID, names, from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select deadlines: %w", err)
	}
	defer rows.Close()

	var res []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetExpiringDomains возвращает домены со сроком до until, кроме уже истёкших, ближайшие первыми.
func (r *PostgresRepository) GetExpiringDomains(ctx context.Context, ownerID string, until time.Time, limit int) ([]model.ExpiringItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT d.id, d.domain_name, d.expiry_date, p.id, p.name
		 FROM domains d
		 JOIN projects p ON p.id = d.project_id
		 WHERE p.owner_id = $1 AND p.deleted_at IS NULL AND d.deleted_at IS NULL
		   AND d.expiry_date <= $2 AND d.status <> $3
		 ORDER BY d.expiry_date ASC
		 LIMIT $4`,
		ownerID, until, string(model.RenewalStatusExpired), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select expiring domains: %w", err)
	}
	defer rows.Close()

	return collectExpiring(rows)
}

// GetExpiringHostings возвращает хостинги со сроком до until. Хостинги без даты окончания не попадают в выборку.
func (r *PostgresRepository) GetExpiringHostings(ctx context.Context, ownerID string, until time.Time, limit int) ([]model.ExpiringItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT h.id, h.provider, h.expiry_date, p.id, p.name
		 FROM hostings h
		 JOIN projects p ON p.id = h.project_id
		 WHERE p.owner_id = $1 AND p.deleted_at IS NULL AND h.deleted_at IS NULL
		   AND h.expiry_date IS NOT NULL AND h.expiry_date <= $2 AND h.status <> $3
		 ORDER BY h.expiry_date ASC
		 LIMIT $4`,
		ownerID, until, string(model.RenewalStatusExpired), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select expiring hostings: %w", err)
	}
	defer rows.Close()

	return collectExpiring(rows)
}

func collectExpiring(rows pgx.Rows) ([]model.ExpiringItem, error) {
	var res []model.ExpiringItem
	for rows.Next() {
		var it model.ExpiringItem
		if err := rows.Scan(&it.ID, &it.Label, &it.ExpiryDate, &it.ProjectID, &it.ProjectName); err != nil {
			return nil, fmt.Errorf("scan expiring item: %w", err)
		}
		res = append(res, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetRecentActivities возвращает последние записи журнала действий пользователя.
func (r *PostgresRepository) GetRecentActivities(ctx context.Context, ownerID string, limit int) ([]model.Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.owner_id, a.project_id, COALESCE(p.name, ''), a.action, a.entity_type,
		        a.entity_id, a.description, a.created_at
		 FROM activities a
		 LEFT JOIN projects p ON p.id = a.project_id
		 WHERE a.owner_id = $1
		 ORDER BY a.created_at DESC
		 LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select activities: %w", err)
	}
	defer rows.Close()

	var res []model.Activity
	for rows.Next() {
		var a model.Activity
		err := rows.Scan(&a.ID, &a.OwnerID, &a.ProjectID, &a.ProjectName, &a.Action,
			&a.EntityType, &a.EntityID, &a.Description, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
