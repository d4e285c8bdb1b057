package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/projectdesk/internal/metrics"
	"github.com/mmeshcher/projectdesk/internal/model"
)

const (
	deadlineWindow = 14 * 24 * time.Hour
	deadlineLimit  = 5
	activityLimit  = 10
	seriesMonths   = 6
)

var deadlineStatuses = []model.ProjectStatus{
	model.ProjectStatusActive,
	model.ProjectStatusPlanning,
	model.ProjectStatusReview,
}

// GetDashboard возвращает сводку пользователя. При включённом кэше повторные запросы
// обслуживаются из него до ближайшего изменения данных.
func (s *Service) GetDashboard(ctx context.Context, ownerID string) (*model.Dashboard, error) {
	if s.cache != nil {
		d, ok, err := s.cache.GetDashboard(ctx, ownerID)
		switch {
		case err != nil:
			metrics.IncrementDashboardCache("error")
			s.logger.Warn("dashboard cache read failed", zap.String("owner_id", ownerID), zap.Error(err))
		case ok:
			metrics.IncrementDashboardCache("hit")
			return d, nil
		default:
			metrics.IncrementDashboardCache("miss")
		}
	}

	gen := s.generations.current(ownerID)

	start := time.Now()
	d, err := s.buildDashboard(ctx, ownerID, s.now())
	if err != nil {
		return nil, err
	}
	metrics.RecordDashboardBuild(time.Since(start))

	if s.cache != nil {
		stored := s.generations.storeIf(ownerID, gen, func() {
			if err := s.cache.SetDashboard(ctx, ownerID, d); err != nil {
				s.logger.Warn("dashboard cache write failed", zap.String("owner_id", ownerID), zap.Error(err))
			}
		})
		if !stored {
			s.logger.Debug("dashboard changed during build, cache write skipped", zap.String("owner_id", ownerID))
		}
	}

	return d, nil
}

func (s *Service) buildDashboard(ctx context.Context, ownerID string, now time.Time) (*model.Dashboard, error) {
	var (
		projectCounts     map[model.ProjectStatus]int
		taskCounts        map[model.TaskStatus]int
		totalValue, paid  int64
		monthly           int64
		monthlyCount      int
		deadlines         []model.Project
		alerts            model.ExpiryAlerts
		activities        []model.Activity
		paidInSeriesRange []model.Payment
	)

	monthStart, nextMonth := monthBounds(now)
	seriesFrom, seriesTo := seriesWindow(now)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.read(gctx, "projects_by_status", func(ctx context.Context) error {
			var err error
			projectCounts, err = s.repo.CountProjectsByStatus(ctx, ownerID)
			return err
		})
	})
	g.Go(func() error {
		return s.read(gctx, "tasks_by_status", func(ctx context.Context) error {
			var err error
			taskCounts, err = s.repo.CountTasksByStatus(ctx, ownerID)
			return err
		})
	})
	g.Go(func() error {
		return s.read(gctx, "project_financials", func(ctx context.Context) error {
			var err error
			totalValue, paid, err = s.repo.SumProjectFinancials(ctx, ownerID)
			return err
		})
	})
	g.Go(func() error {
		return s.read(gctx, "monthly_income", func(ctx context.Context) error {
			var err error
			monthly, monthlyCount, err = s.repo.SumPaidPayments(ctx, ownerID, monthStart, nextMonth)
			return err
		})
	})
	g.Go(func() error {
		return s.read(gctx, "upcoming_deadlines", func(ctx context.Context) error {
			var err error
			deadlines, err = s.repo.GetUpcomingDeadlines(ctx, ownerID, now, now.Add(deadlineWindow), deadlineStatuses, deadlineLimit)
			return err
		})
	})
	g.Go(func() error {
		var err error
		alerts, err = s.expiryAlerts(gctx, ownerID, now)
		return err
	})
	g.Go(func() error {
		return s.read(gctx, "recent_activities", func(ctx context.Context) error {
			var err error
			activities, err = s.activities.GetRecentActivities(ctx, ownerID, activityLimit)
			return err
		})
	})
	g.Go(func() error {
		return s.read(gctx, "income_series", func(ctx context.Context) error {
			var err error
			paidInSeriesRange, err = s.repo.GetPaidPaymentsBetween(ctx, ownerID, seriesFrom, seriesTo)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &model.Dashboard{
		ProjectsByStatus: make(map[model.ProjectStatus]int, len(model.ProjectStatuses)),
		TasksByStatus:    make(map[model.TaskStatus]int, len(model.TaskStatuses)),
		Finance: model.FinanceSummary{
			TotalValue:           totalValue,
			PaidAmount:           paid,
			PendingAmount:        totalValue - paid,
			MonthlyIncome:        monthly,
			MonthlyPaymentsCount: monthlyCount,
		},
		UpcomingDeadlines: make([]model.DeadlineItem, 0, len(deadlines)),
		Alerts:            alerts,
		RecentActivities:  nonNil(activities),
		IncomeSeries:      buildIncomeSeries(now, paidInSeriesRange),
		GeneratedAt:       now,
	}

	for _, st := range model.ProjectStatuses {
		n := projectCounts[st]
		d.ProjectsByStatus[st] = n
		d.Overview.TotalProjects += n
	}
	for _, st := range model.TaskStatuses {
		n := taskCounts[st]
		d.TasksByStatus[st] = n
		d.Overview.TotalTasks += n
	}
	d.Overview.ActiveProjects = d.ProjectsByStatus[model.ProjectStatusActive]
	d.Overview.CompletedProjects = d.ProjectsByStatus[model.ProjectStatusCompleted]
	d.Overview.PendingTasks = d.TasksByStatus[model.TaskStatusTodo] + d.TasksByStatus[model.TaskStatusInProgress]
	d.Overview.CompletedTasks = d.TasksByStatus[model.TaskStatusCompleted]

	for _, p := range deadlines {
		if p.Deadline == nil {
			continue
		}
		d.UpcomingDeadlines = append(d.UpcomingDeadlines, model.DeadlineItem{
			ID:       p.ID,
			Name:     p.Name,
			Client:   p.Client,
			Deadline: *p.Deadline,
			Status:   p.Status,
			Progress: p.Progress,
		})
	}

	return d, nil
}

// monthBounds возвращает начало текущего месяца и начало следующего.
func monthBounds(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

// seriesWindow возвращает полуинтервал из шести календарных месяцев, включая текущий.
func seriesWindow(now time.Time) (time.Time, time.Time) {
	start, next := monthBounds(now)
	return start.AddDate(0, -(seriesMonths - 1), 0), next
}

// buildIncomeSeries раскладывает оплаченные платежи по месяцам окна. Все шесть месяцев
// присутствуют в результате, даже без платежей.
func buildIncomeSeries(now time.Time, payments []model.Payment) []model.IncomeBucket {
	from, _ := seriesWindow(now)

	buckets := make([]model.IncomeBucket, seriesMonths)
	index := make(map[int]int, seriesMonths)
	for i := range buckets {
		m := from.AddDate(0, i, 0)
		buckets[i] = model.IncomeBucket{Year: m.Year(), Month: m.Month()}
		index[monthKey(m.Year(), m.Month())] = i
	}

	for _, p := range payments {
		if p.Status != model.PaymentStatusPaid || p.DeletedAt != nil {
			continue
		}
		date := p.PaymentDate.In(now.Location())
		if i, ok := index[monthKey(date.Year(), date.Month())]; ok {
			buckets[i].Amount += p.Amount
		}
	}

	return buckets
}

func monthKey(year int, month time.Month) int {
	return year*12 + int(month) - 1
}
