package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/projectdesk/internal/model"
	"github.com/mmeshcher/projectdesk/internal/repository"
	"github.com/mmeshcher/projectdesk/internal/validation"
)

// RecalculateProgress пересчитывает прогресс проекта по доле завершённых задач и возвращает новое значение.
// Если задач нет, прогресс не меняется.
func (s *Service) RecalculateProgress(ctx context.Context, ownerID, projectID string) (int, error) {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	var progress int
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		project, err := tx.LockProject(ctx, ownerID, projectID)
		if err != nil {
			return err
		}
		progress, err = s.recalculateProgressTx(ctx, tx, project)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx, ownerID)

	return progress, nil
}

func (s *Service) recalculateProgressTx(ctx context.Context, tx repository.Tx, project *model.Project) (int, error) {
	statuses, err := tx.ListTaskStatuses(ctx, project.ID)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, st := range statuses {
		if st == model.TaskStatusCompleted {
			completed++
		}
	}

	progress, ok := computeProgress(completed, len(statuses))
	if !ok || progress == project.Progress {
		return project.Progress, nil
	}

	if err := tx.SetProjectProgress(ctx, project.ID, progress); err != nil {
		return 0, err
	}

	s.logger.Debug("project progress updated",
		zap.String("project_id", project.ID),
		zap.Int("from", project.Progress),
		zap.Int("to", progress),
	)

	return progress, nil
}

// computeProgress возвращает round(100*completed/total) и false при пустом списке задач.
func computeProgress(completed, total int) (int, bool) {
	if total <= 0 {
		return 0, false
	}
	if completed < 0 {
		completed = 0
	}
	if completed > total {
		completed = total
	}
	return (200*completed + total) / (2 * total), true
}

// CreateTask создаёт задачу и пересчитывает прогресс её проекта.
func (s *Service) CreateTask(ctx context.Context, ownerID string, in model.TaskInput) (*model.Task, error) {
	if err := validation.TaskInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	task := &model.Task{
		ID:        uuid.NewString(),
		ProjectID: in.ProjectID,
		Title:     strings.TrimSpace(in.Title),
		CreatedAt: now,
	}
	applyTaskStatus(task, in.Status, now)

	unlock := s.locks.Lock(task.ProjectID)
	defer unlock()

	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		project, err := tx.LockProject(ctx, ownerID, task.ProjectID)
		if err != nil {
			return err
		}
		if err := tx.InsertTask(ctx, task); err != nil {
			return err
		}
		_, err = s.recalculateProgressTx(ctx, tx, project)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, ownerID)

	return task, nil
}

// UpdateTaskStatus меняет статус задачи и пересчитывает прогресс проекта.
func (s *Service) UpdateTaskStatus(ctx context.Context, ownerID, taskID string, status model.TaskStatus) (*model.Task, error) {
	if err := validation.TaskStatus(status); err != nil {
		return nil, err
	}

	current, err := s.repo.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(current.ProjectID)
	defer unlock()

	var task *model.Task
	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		project, err := tx.LockProject(ctx, ownerID, current.ProjectID)
		if err != nil {
			return err
		}

		task, err = tx.GetTask(ctx, ownerID, taskID)
		if err != nil {
			return err
		}
		if task.Status == status {
			return nil
		}

		applyTaskStatus(task, status, s.now())
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		_, err = s.recalculateProgressTx(ctx, tx, project)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, ownerID)

	return task, nil
}

// DeleteTask помечает задачу удалённой и пересчитывает прогресс проекта.
func (s *Service) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	current, err := s.repo.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(current.ProjectID)
	defer unlock()

	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		project, err := tx.LockProject(ctx, ownerID, current.ProjectID)
		if err != nil {
			return err
		}
		if err := tx.SoftDeleteTask(ctx, taskID, s.now()); err != nil {
			return err
		}
		_, err = s.recalculateProgressTx(ctx, tx, project)
		return err
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, ownerID)

	return nil
}

// applyTaskStatus выставляет статус и completedAt: время ставится при переходе в COMPLETED
// и сбрасывается при выходе из него.
func applyTaskStatus(task *model.Task, status model.TaskStatus, now time.Time) {
	switch {
	case status != model.TaskStatusCompleted:
		task.CompletedAt = nil
	case task.Status != model.TaskStatusCompleted || task.CompletedAt == nil:
		t := now
		task.CompletedAt = &t
	}
	task.Status = status
}
