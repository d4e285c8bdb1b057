package model

import "time"

// Dashboard содержит сводку для главной страницы пользователя на момент GeneratedAt.
type Dashboard struct {
	Overview          Overview              `json:"overview"`
	ProjectsByStatus  map[ProjectStatus]int `json:"projects_by_status"`
	TasksByStatus     map[TaskStatus]int    `json:"tasks_by_status"`
	Finance           FinanceSummary        `json:"finance"`
	UpcomingDeadlines []DeadlineItem        `json:"upcoming_deadlines"`
	Alerts            ExpiryAlerts          `json:"alerts"`
	RecentActivities  []Activity            `json:"recent_activities"`
	IncomeSeries      []IncomeBucket        `json:"income_series"`
	GeneratedAt       time.Time             `json:"generated_at"`
}

// Overview содержит счётчики проектов и задач.
type Overview struct {
	TotalProjects     int `json:"total_projects"`
	ActiveProjects    int `json:"active_projects"`
	CompletedProjects int `json:"completed_projects"`
	TotalTasks        int `json:"total_tasks"`
	PendingTasks      int `json:"pending_tasks"`
	CompletedTasks    int `json:"completed_tasks"`
}

// FinanceSummary содержит финансовые итоги по всем проектам пользователя.
// PendingAmount может быть отрицательным при переплате.
type FinanceSummary struct {
	TotalValue           int64 `json:"total_value"`
	PaidAmount           int64 `json:"paid_amount"`
	PendingAmount        int64 `json:"pending_amount"`
	MonthlyIncome        int64 `json:"monthly_income"`
	MonthlyPaymentsCount int   `json:"monthly_payments_count"`
}

// DeadlineItem описывает проект с приближающимся дедлайном.
type DeadlineItem struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Client   string        `json:"client"`
	Deadline time.Time     `json:"deadline"`
	Status   ProjectStatus `json:"status"`
	Progress int           `json:"progress"`
}

// ExpiringItem описывает домен или хостинг, срок которого скоро истекает.
type ExpiringItem struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	ExpiryDate  time.Time `json:"expiry_date"`
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name"`
}

// ExpiryAlerts содержит предупреждения об истекающих доменах и хостингах.
type ExpiryAlerts struct {
	Domains       []ExpiringItem `json:"domains"`
	Hostings      []ExpiringItem `json:"hostings"`
	DomainsCount  int            `json:"domains_count"`
	HostingsCount int            `json:"hostings_count"`
}

// IncomeBucket содержит сумму оплаченных платежей за календарный месяц.
type IncomeBucket struct {
	Year   int        `json:"year"`
	Month  time.Month `json:"month"`
	Amount int64      `json:"amount"`
}
