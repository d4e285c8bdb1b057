package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mmeshcher/projectdesk/internal/model"
)

type memState struct {
	projects   map[string]model.Project
	tasks      map[string]model.Task
	payments   map[string]model.Payment
	invoices   map[string]model.Invoice
	incomes    map[string]model.Income
	domains    map[string]model.Domain
	hostings   map[string]model.Hosting
	activities []model.Activity
}

func newMemState() *memState {
	return &memState{
		projects: make(map[string]model.Project),
		tasks:    make(map[string]model.Task),
		payments: make(map[string]model.Payment),
		invoices: make(map[string]model.Invoice),
		incomes:  make(map[string]model.Income),
		domains:  make(map[string]model.Domain),
		hostings: make(map[string]model.Hosting),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		projects:   make(map[string]model.Project, len(s.projects)),
		tasks:      make(map[string]model.Task, len(s.tasks)),
		payments:   make(map[string]model.Payment, len(s.payments)),
		invoices:   make(map[string]model.Invoice, len(s.invoices)),
		incomes:    make(map[string]model.Income, len(s.incomes)),
		domains:    s.domains,
		hostings:   s.hostings,
		activities: s.activities,
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.tasks {
		c.tasks[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.incomes {
		c.incomes[k] = v
	}
	return c
}

func (s *memState) ownedProject(ownerID, projectID string) (model.Project, bool) {
	p, ok := s.projects[projectID]
	if !ok || p.OwnerID != ownerID || p.DeletedAt != nil {
		return model.Project{}, false
	}
	return p, true
}

func (s *memState) liveProject(projectID string) bool {
	p, ok := s.projects[projectID]
	return ok && p.DeletedAt == nil
}

func (s *memState) payment(ownerID, paymentID string) (*model.Payment, error) {
	p, ok := s.payments[paymentID]
	if !ok || p.DeletedAt != nil {
		return nil, fmt.Errorf("%w: payment", ErrNotFound)
	}
	if _, ok := s.ownedProject(ownerID, p.ProjectID); !ok {
		return nil, fmt.Errorf("%w: payment", ErrNotFound)
	}
	return &p, nil
}

func (s *memState) invoice(ownerID, invoiceID string) (*model.Invoice, error) {
	i, ok := s.invoices[invoiceID]
	if !ok || i.DeletedAt != nil {
		return nil, fmt.Errorf("%w: invoice", ErrNotFound)
	}
	if _, ok := s.ownedProject(ownerID, i.ProjectID); !ok {
		return nil, fmt.Errorf("%w: invoice", ErrNotFound)
	}
	return &i, nil
}

func (s *memState) task(ownerID, taskID string) (*model.Task, error) {
	t, ok := s.tasks[taskID]
	if !ok || t.DeletedAt != nil {
		return nil, fmt.Errorf("%w: task", ErrNotFound)
	}
	if _, ok := s.ownedProject(ownerID, t.ProjectID); !ok {
		return nil, fmt.Errorf("%w: task", ErrNotFound)
	}
	return &t, nil
}

// MemoryRepository хранит данные в памяти процесса. Используется в тестах и при запуске без DATABASE_URI.
//
// Транзакция работает с копией состояния и подменяет его только при успешном завершении.
type MemoryRepository struct {
	mu    sync.RWMutex
	state *memState
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: newMemState()}
}

// Close ничего не делает и нужен для совместимости с PostgresRepository.
func (r *MemoryRepository) Close() error {
	return nil
}

// InTx выполняет fn над копией состояния и применяет её, если fn не вернула ошибку.
func (r *MemoryRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := r.state.clone()
	if err := fn(&memTx{s: work}); err != nil {
		return err
	}
	r.state = work
	return nil
}

// AddProject добавляет проект.
func (r *MemoryRepository) AddProject(p model.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.projects[p.ID] = p
}

// AddInvoice добавляет счёт.
func (r *MemoryRepository) AddInvoice(i model.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.invoices[i.ID] = i
}

// AddTask добавляет задачу без пересчёта прогресса проекта.
func (r *MemoryRepository) AddTask(t model.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.tasks[t.ID] = t
}

// AddPayment добавляет платёж как есть, без записей о доходе и пересчёта итогов.
func (r *MemoryRepository) AddPayment(p model.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.payments[p.ID] = p
}

// AddDomain добавляет домен.
func (r *MemoryRepository) AddDomain(d model.Domain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.domains[d.ID] = d
}

// AddHosting добавляет хостинг.
func (r *MemoryRepository) AddHosting(h model.Hosting) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.hostings[h.ID] = h
}

// AddActivity добавляет запись журнала действий.
func (r *MemoryRepository) AddActivity(a model.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.activities = append(r.state.activities, a)
}

// Project возвращает проект по идентификатору без проверки владельца.
func (r *MemoryRepository) Project(id string) (model.Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.state.projects[id]
	return p, ok
}

// Invoice возвращает счёт по идентификатору без проверки владельца.
func (r *MemoryRepository) Invoice(id string) (model.Invoice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.state.invoices[id]
	return i, ok
}

// Payments возвращает все платежи, включая удалённые.
func (r *MemoryRepository) Payments() []model.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]model.Payment, 0, len(r.state.payments))
	for _, p := range r.state.payments {
		res = append(res, p)
	}
	slices.SortFunc(res, func(a, b model.Payment) int { return cmp.Compare(a.ID, b.ID) })
	return res
}

// Incomes возвращает все записи о доходе.
func (r *MemoryRepository) Incomes() []model.Income {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]model.Income, 0, len(r.state.incomes))
	for _, in := range r.state.incomes {
		res = append(res, in)
	}
	slices.SortFunc(res, func(a, b model.Income) int { return cmp.Compare(a.PaymentID, b.PaymentID) })
	return res
}

// GetProject возвращает проект пользователя.
func (r *MemoryRepository) GetProject(_ context.Context, ownerID, projectID string) (*model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.state.ownedProject(ownerID, projectID)
	if !ok {
		return nil, fmt.Errorf("%w: project", ErrNotFound)
	}
	return &p, nil
}

// GetPayment возвращает неудалённый платёж из проекта пользователя.
func (r *MemoryRepository) GetPayment(_ context.Context, ownerID, paymentID string) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.payment(ownerID, paymentID)
}

// GetPaymentsByProject возвращает неудалённые платежи проекта, новые первыми.
func (r *MemoryRepository) GetPaymentsByProject(_ context.Context, ownerID, projectID string) ([]model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.state.ownedProject(ownerID, projectID); !ok {
		return nil, nil
	}

	var res []model.Payment
	for _, p := range r.state.payments {
		if p.ProjectID == projectID && p.DeletedAt == nil {
			res = append(res, p)
		}
	}
	slices.SortFunc(res, func(a, b model.Payment) int { return b.PaymentDate.Compare(a.PaymentDate) })
	return res, nil
}

// GetInvoice возвращает неудалённый счёт из проекта пользователя.
func (r *MemoryRepository) GetInvoice(_ context.Context, ownerID, invoiceID string) (*model.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.invoice(ownerID, invoiceID)
}

// GetTask возвращает неудалённую задачу из проекта пользователя.
func (r *MemoryRepository) GetTask(_ context.Context, ownerID, taskID string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.task(ownerID, taskID)
}

// CountProjectsByStatus возвращает количество проектов пользователя по статусам.
func (r *MemoryRepository) CountProjectsByStatus(_ context.Context, ownerID string) (map[model.ProjectStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make(map[model.ProjectStatus]int)
	for _, p := range r.state.projects {
		if p.OwnerID == ownerID && p.DeletedAt == nil {
			res[p.Status]++
		}
	}
	return res, nil
}

// CountTasksByStatus возвращает количество задач во всех проектах пользователя по статусам.
func (r *MemoryRepository) CountTasksByStatus(_ context.Context, ownerID string) (map[model.TaskStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make(map[model.TaskStatus]int)
	for _, t := range r.state.tasks {
		if t.DeletedAt != nil {
			continue
		}
		if _, ok := r.state.ownedProject(ownerID, t.ProjectID); ok {
			res[t.Status]++
		}
	}
	return res, nil
}

// SumProjectFinancials возвращает сумму стоимости и оплат по всем проектам пользователя.
func (r *MemoryRepository) SumProjectFinancials(_ context.Context, ownerID string) (int64, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var totalValue, paidAmount int64
	for _, p := range r.state.projects {
		if p.OwnerID == ownerID && p.DeletedAt == nil {
			totalValue += p.TotalValue
			paidAmount += p.PaidAmount
		}
	}
	return totalValue, paidAmount, nil
}

func (r *MemoryRepository) paidBetween(ownerID string, from, to time.Time) []model.Payment {
	var res []model.Payment
	for _, p := range r.state.payments {
		if !p.IsPaid() || p.PaymentDate.Before(from) || !p.PaymentDate.Before(to) {
			continue
		}
		if _, ok := r.state.ownedProject(ownerID, p.ProjectID); ok {
			res = append(res, p)
		}
	}
	slices.SortFunc(res, func(a, b model.Payment) int { return a.PaymentDate.Compare(b.PaymentDate) })
	return res
}

// SumPaidPayments возвращает сумму и количество оплаченных платежей с датой в [from, to).
func (r *MemoryRepository) SumPaidPayments(_ context.Context, ownerID string, from, to time.Time) (int64, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum int64
	paid := r.paidBetween(ownerID, from, to)
	for _, p := range paid {
		sum += p.Amount
	}
	return sum, len(paid), nil
}

// GetPaidPaymentsBetween возвращает оплаченные платежи с датой в [from, to).
func (r *MemoryRepository) GetPaidPaymentsBetween(_ context.Context, ownerID string, from, to time.Time) ([]model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paidBetween(ownerID, from, to), nil
}

// GetUpcomingDeadlines возвращает проекты с указанными статусами и дедлайном в [from, to].
func (r *MemoryRepository) GetUpcomingDeadlines(_ context.Context, ownerID string, from, to time.Time, statuses []model.ProjectStatus, limit int) ([]model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Project
	for _, p := range r.state.projects {
		if p.OwnerID != ownerID || p.DeletedAt != nil || p.Deadline == nil {
			continue
		}
		if !slices.Contains(statuses, p.Status) {
			continue
		}
		if p.Deadline.Before(from) || p.Deadline.After(to) {
			continue
		}
		res = append(res, p)
	}
	slices.SortFunc(res, func(a, b model.Project) int { return a.Deadline.Compare(*b.Deadline) })
	return truncate(res, limit), nil
}

// GetExpiringDomains возвращает домены со сроком до until, кроме уже истёкших, ближайшие первыми.
func (r *MemoryRepository) GetExpiringDomains(_ context.Context, ownerID string, until time.Time, limit int) ([]model.ExpiringItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.ExpiringItem
	for _, d := range r.state.domains {
		if d.DeletedAt != nil || d.Status == model.RenewalStatusExpired || d.ExpiryDate.After(until) {
			continue
		}
		p, ok := r.state.ownedProject(ownerID, d.ProjectID)
		if !ok {
			continue
		}
		res = append(res, model.ExpiringItem{
			ID:          d.ID,
			Label:       d.Name,
			ExpiryDate:  d.ExpiryDate,
			ProjectID:   p.ID,
			ProjectName: p.Name,
		})
	}
	sortExpiring(res)
	return truncate(res, limit), nil
}

// GetExpiringHostings возвращает хостинги со сроком до until. Хостинги без даты окончания не попадают в выборку.
func (r *MemoryRepository) GetExpiringHostings(_ context.Context, ownerID string, until time.Time, limit int) ([]model.ExpiringItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.ExpiringItem
	for _, h := range r.state.hostings {
		if h.DeletedAt != nil || h.ExpiryDate == nil || h.Status == model.RenewalStatusExpired || h.ExpiryDate.After(until) {
			continue
		}
		p, ok := r.state.ownedProject(ownerID, h.ProjectID)
		if !ok {
			continue
		}
		res = append(res, model.ExpiringItem{
			ID:          h.ID,
			Label:       h.Provider,
			ExpiryDate:  *h.ExpiryDate,
			ProjectID:   p.ID,
			ProjectName: p.Name,
		})
	}
	sortExpiring(res)
	return truncate(res, limit), nil
}

func sortExpiring(items []model.ExpiringItem) {
	slices.SortFunc(items, func(a, b model.ExpiringItem) int {
		if c := a.ExpiryDate.Compare(b.ExpiryDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// GetRecentActivities возвращает последние записи журнала действий пользователя.
func (r *MemoryRepository) GetRecentActivities(_ context.Context, ownerID string, limit int) ([]model.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Activity
	for _, a := range r.state.activities {
		if a.OwnerID != ownerID {
			continue
		}
		if a.ProjectID != nil {
			if p, ok := r.state.projects[*a.ProjectID]; ok {
				a.ProjectName = p.Name
			}
		}
		res = append(res, a)
	}
	slices.SortStableFunc(res, func(a, b model.Activity) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return truncate(res, limit), nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

type memTx struct {
	s *memState
}

func (t *memTx) LockProject(_ context.Context, ownerID, projectID string) (*model.Project, error) {
	p, ok := t.s.ownedProject(ownerID, projectID)
	if !ok {
		return nil, fmt.Errorf("%w: project", ErrNotFound)
	}
	return &p, nil
}

func (t *memTx) AddProjectPaidAmount(_ context.Context, projectID string, delta int64) (int64, error) {
	p, ok := t.s.projects[projectID]
	if !ok {
		return 0, fmt.Errorf("%w: project", ErrNotFound)
	}
	p.PaidAmount += delta
	if p.PaidAmount < 0 {
		return 0, fmt.Errorf("%w: project %s paid amount would become %d", ErrConsistency, projectID, p.PaidAmount)
	}
	t.s.projects[projectID] = p
	return p.PaidAmount, nil
}

func (t *memTx) SetProjectProgress(_ context.Context, projectID string, progress int) error {
	p, ok := t.s.projects[projectID]
	if !ok {
		return fmt.Errorf("%w: project", ErrNotFound)
	}
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", ErrConsistency, progress)
	}
	p.Progress = progress
	t.s.projects[projectID] = p
	return nil
}

func (t *memTx) GetPayment(_ context.Context, ownerID, paymentID string) (*model.Payment, error) {
	return t.s.payment(ownerID, paymentID)
}

func (t *memTx) checkPayment(p *model.Payment) error {
	if p.Amount < 0 {
		return fmt.Errorf("%w: payment amount %d", ErrConsistency, p.Amount)
	}
	if !t.s.liveProject(p.ProjectID) {
		return fmt.Errorf("%w: project", ErrNotFound)
	}
	if p.InvoiceID != nil {
		if _, ok := t.s.invoices[*p.InvoiceID]; !ok {
			return fmt.Errorf("%w: invoice", ErrNotFound)
		}
	}
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, p *model.Payment) error {
	if _, ok := t.s.payments[p.ID]; ok {
		return fmt.Errorf("%w: duplicate payment %s", ErrConsistency, p.ID)
	}
	if err := t.checkPayment(p); err != nil {
		return err
	}
	t.s.payments[p.ID] = *p
	return nil
}

func (t *memTx) UpdatePayment(_ context.Context, p *model.Payment) error {
	cur, ok := t.s.payments[p.ID]
	if !ok || cur.DeletedAt != nil {
		return fmt.Errorf("%w: payment", ErrNotFound)
	}
	if err := t.checkPayment(p); err != nil {
		return err
	}
	p.CreatedAt = cur.CreatedAt
	t.s.payments[p.ID] = *p
	return nil
}

func (t *memTx) SoftDeletePayment(_ context.Context, paymentID string, at time.Time) error {
	p, ok := t.s.payments[paymentID]
	if !ok || p.DeletedAt != nil {
		return fmt.Errorf("%w: payment", ErrNotFound)
	}
	p.DeletedAt = &at
	p.UpdatedAt = at
	t.s.payments[paymentID] = p
	return nil
}

func (t *memTx) InsertIncome(_ context.Context, in *model.Income) error {
	if in.Amount < 0 || in.Month < 1 || in.Month > 12 {
		return fmt.Errorf("%w: income for payment %s", ErrConsistency, in.PaymentID)
	}
	for _, existing := range t.s.incomes {
		if existing.PaymentID == in.PaymentID {
			return fmt.Errorf("%w: duplicate income for payment %s", ErrConsistency, in.PaymentID)
		}
	}
	t.s.incomes[in.ID] = *in
	return nil
}

func (t *memTx) UpdateIncome(_ context.Context, in *model.Income) error {
	for id, existing := range t.s.incomes {
		if existing.PaymentID == in.PaymentID {
			existing.Amount = in.Amount
			existing.Month = in.Month
			existing.Year = in.Year
			t.s.incomes[id] = existing
			return nil
		}
	}
	return fmt.Errorf("%w: income for payment %s missing", ErrConsistency, in.PaymentID)
}

func (t *memTx) DeleteIncomeByPayment(_ context.Context, paymentID string) (int64, error) {
	var n int64
	for id, in := range t.s.incomes {
		if in.PaymentID == paymentID {
			delete(t.s.incomes, id)
			n++
		}
	}
	return n, nil
}

func (t *memTx) CountIncomeByPayment(_ context.Context, paymentID string) (int, error) {
	n := 0
	for _, in := range t.s.incomes {
		if in.PaymentID == paymentID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) GetInvoice(_ context.Context, ownerID, invoiceID string) (*model.Invoice, error) {
	return t.s.invoice(ownerID, invoiceID)
}

func (t *memTx) SumPaidByInvoice(_ context.Context, invoiceID string) (int64, error) {
	var sum int64
	for _, p := range t.s.payments {
		if p.InvoiceID != nil && *p.InvoiceID == invoiceID && p.IsPaid() {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (t *memTx) UpdateInvoicePayment(_ context.Context, invoiceID string, paid int64, status model.InvoiceStatus) error {
	i, ok := t.s.invoices[invoiceID]
	if !ok {
		return fmt.Errorf("%w: invoice", ErrNotFound)
	}
	if paid < 0 {
		return fmt.Errorf("%w: invoice %s paid amount %d", ErrConsistency, invoiceID, paid)
	}
	i.PaidAmount = paid
	i.Status = status
	t.s.invoices[invoiceID] = i
	return nil
}

func (t *memTx) GetTask(_ context.Context, ownerID, taskID string) (*model.Task, error) {
	return t.s.task(ownerID, taskID)
}

func (t *memTx) InsertTask(_ context.Context, task *model.Task) error {
	if !t.s.liveProject(task.ProjectID) {
		return fmt.Errorf("%w: project", ErrNotFound)
	}
	t.s.tasks[task.ID] = *task
	return nil
}

func (t *memTx) UpdateTask(_ context.Context, task *model.Task) error {
	cur, ok := t.s.tasks[task.ID]
	if !ok || cur.DeletedAt != nil {
		return fmt.Errorf("%w: task", ErrNotFound)
	}
	cur.Title = task.Title
	cur.Status = task.Status
	cur.CompletedAt = task.CompletedAt
	t.s.tasks[task.ID] = cur
	return nil
}

func (t *memTx) SoftDeleteTask(_ context.Context, taskID string, at time.Time) error {
	task, ok := t.s.tasks[taskID]
	if !ok || task.DeletedAt != nil {
		return fmt.Errorf("%w: task", ErrNotFound)
	}
	task.DeletedAt = &at
	t.s.tasks[taskID] = task
	return nil
}

func (t *memTx) ListTaskStatuses(_ context.Context, projectID string) ([]model.TaskStatus, error) {
	var res []model.TaskStatus
	for _, task := range t.s.tasks {
		if task.ProjectID == projectID && task.DeletedAt == nil {
			res = append(res, task.Status)
		}
	}
	return res, nil
}
