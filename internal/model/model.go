// Package model содержит доменные сущности сервиса projectdesk.
//
// Денежные суммы хранятся в целых минимальных единицах валюты (копейках, центах).
package model

import "time"

// ProjectStatus описывает стадию жизненного цикла проекта.
type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "PLANNING"
	ProjectStatusActive    ProjectStatus = "ACTIVE"
	ProjectStatusOnHold    ProjectStatus = "ON_HOLD"
	ProjectStatusReview    ProjectStatus = "REVIEW"
	ProjectStatusCompleted ProjectStatus = "COMPLETED"
	ProjectStatusCancelled ProjectStatus = "CANCELLED"
)

// ProjectStatuses перечисляет все статусы проекта в порядке отображения.
var ProjectStatuses = []ProjectStatus{
	ProjectStatusPlanning,
	ProjectStatusActive,
	ProjectStatusOnHold,
	ProjectStatusReview,
	ProjectStatusCompleted,
	ProjectStatusCancelled,
}

// TaskStatus описывает статус задачи.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusReview     TaskStatus = "REVIEW"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusBlocked    TaskStatus = "BLOCKED"
)

// TaskStatuses перечисляет все статусы задачи.
var TaskStatuses = []TaskStatus{
	TaskStatusTodo,
	TaskStatusInProgress,
	TaskStatusReview,
	TaskStatusCompleted,
	TaskStatusBlocked,
}

// PaymentStatus описывает статус платежа.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusPaid       PaymentStatus = "PAID"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// PaymentStatuses перечисляет все статусы платежа.
var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusProcessing,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
	PaymentStatusCancelled,
}

// InvoiceStatus описывает статус счёта. PENDING, PARTIAL и PAID вычисляются по платежам.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// RenewalStatus описывает статус домена или хостинга.
type RenewalStatus string

const (
	RenewalStatusActive    RenewalStatus = "ACTIVE"
	RenewalStatusExpired   RenewalStatus = "EXPIRED"
	RenewalStatusCancelled RenewalStatus = "CANCELLED"
)

// Project описывает проект пользователя и его финансовые итоги.
type Project struct {
	ID         string
	OwnerID    string
	Name       string
	Client     string
	Status     ProjectStatus
	Progress   int
	TotalValue int64
	PaidAmount int64
	Deadline   *time.Time
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// Task описывает задачу проекта.
type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Status      TaskStatus
	CompletedAt *time.Time
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

// Payment описывает платёж по проекту, опционально привязанный к счёту.
type Payment struct {
	ID          string
	ProjectID   string
	InvoiceID   *string
	Amount      int64
	Status      PaymentStatus
	PaymentDate time.Time
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// IsPaid сообщает, учитывается ли платёж в доходах.
func (p *Payment) IsPaid() bool {
	return p.Status == PaymentStatusPaid && p.DeletedAt == nil
}

// Invoice описывает счёт проекта.
type Invoice struct {
	ID          string
	ProjectID   string
	Number      string
	TotalAmount int64
	PaidAmount  int64
	Status      InvoiceStatus
	DueDate     *time.Time
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

// Income описывает запись о признанном доходе. Одна запись на каждый оплаченный платёж.
type Income struct {
	ID        string
	ProjectID string
	PaymentID string
	Amount    int64
	Month     int
	Year      int
	CreatedAt time.Time
}

// Domain описывает домен, закреплённый за проектом.
type Domain struct {
	ID         string
	ProjectID  string
	Name       string
	ExpiryDate time.Time
	Status     RenewalStatus
	DeletedAt  *time.Time
}

// Hosting описывает хостинг проекта. Дата окончания может быть не задана.
type Hosting struct {
	ID         string
	ProjectID  string
	Provider   string
	ExpiryDate *time.Time
	Status     RenewalStatus
	DeletedAt  *time.Time
}

// Activity описывает запись журнала действий пользователя.
type Activity struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	ProjectID   *string   `json:"project_id,omitempty"`
	ProjectName string    `json:"project_name,omitempty"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
