// Package service реализует финансовую логику и аналитику сервиса projectdesk.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/projectdesk/internal/model"
	"github.com/mmeshcher/projectdesk/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	InTx(ctx context.Context, fn func(tx repository.Tx) error) error

	GetProject(ctx context.Context, ownerID, projectID string) (*model.Project, error)
	GetPayment(ctx context.Context, ownerID, paymentID string) (*model.Payment, error)
	GetPaymentsByProject(ctx context.Context, ownerID, projectID string) ([]model.Payment, error)
	GetInvoice(ctx context.Context, ownerID, invoiceID string) (*model.Invoice, error)
	GetTask(ctx context.Context, ownerID, taskID string) (*model.Task, error)

	CountProjectsByStatus(ctx context.Context, ownerID string) (map[model.ProjectStatus]int, error)
	CountTasksByStatus(ctx context.Context, ownerID string) (map[model.TaskStatus]int, error)
	SumProjectFinancials(ctx context.Context, ownerID string) (int64, int64, error)
	SumPaidPayments(ctx context.Context, ownerID string, from, to time.Time) (int64, int, error)
	GetPaidPaymentsBetween(ctx context.Context, ownerID string, from, to time.Time) ([]model.Payment, error)
	GetUpcomingDeadlines(ctx context.Context, ownerID string, from, to time.Time, statuses []model.ProjectStatus, limit int) ([]model.Project, error)
	GetExpiringDomains(ctx context.Context, ownerID string, until time.Time, limit int) ([]model.ExpiringItem, error)
	GetExpiringHostings(ctx context.Context, ownerID string, until time.Time, limit int) ([]model.ExpiringItem, error)
	GetRecentActivities(ctx context.Context, ownerID string, limit int) ([]model.Activity, error)
}

// SnapshotCache хранит готовые сводки по пользователям.
type SnapshotCache interface {
	GetDashboard(ctx context.Context, ownerID string) (*model.Dashboard, bool, error)
	SetDashboard(ctx context.Context, ownerID string, d *model.Dashboard) error
	Invalidate(ctx context.Context, ownerID string) error
}

// ActivityFeed отдаёт последние записи журнала действий пользователя.
type ActivityFeed interface {
	GetRecentActivities(ctx context.Context, ownerID string, limit int) ([]model.Activity, error)
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithCache включает кэширование сводки.
func WithCache(c SnapshotCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithActivityFeed задаёт внешний источник журнала действий вместо репозитория.
func WithActivityFeed(f ActivityFeed) Option {
	return func(s *Service) {
		s.activities = f
	}
}

// WithReadRetryDelay задаёт паузу перед повтором аналитического запроса.
func WithReadRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.readRetryDelay = d
		}
	}
}

// Service содержит бизнес-логику платежей, счетов, прогресса проектов и сводки.
type Service struct {
	repo           Repository
	logger         *zap.Logger
	cache          SnapshotCache
	activities     ActivityFeed
	now            func() time.Time
	locks          *keyLock
	generations    *generations
	readRetryDelay time.Duration
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:           repo,
		logger:         logger,
		activities:     repo,
		now:            func() time.Time { return time.Now().UTC() },
		locks:          newKeyLock(),
		generations:    newGenerations(),
		readRetryDelay: 100 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// invalidate сбрасывает кэш сводки после зафиксированного изменения.
func (s *Service) invalidate(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	s.generations.bump(ownerID, func() {
		if err := s.cache.Invalidate(ctx, ownerID); err != nil {
			s.logger.Warn("failed to invalidate dashboard cache",
				zap.String("owner_id", ownerID),
				zap.Error(err),
			)
		}
	})
}
