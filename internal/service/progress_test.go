package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/projectdesk/internal/model"
	"github.com/mmeshcher/projectdesk/internal/repository"
	"github.com/mmeshcher/projectdesk/internal/validation"
)

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		completed, total int
		want             int
		ok               bool
	}{
		{completed: 0, total: 0, ok: false},
		{completed: 0, total: 4, want: 0, ok: true},
		{completed: 1, total: 4, want: 25, ok: true},
		{completed: 2, total: 4, want: 50, ok: true},
		{completed: 1, total: 3, want: 33, ok: true},
		{completed: 2, total: 3, want: 67, ok: true},
		{completed: 1, total: 8, want: 13, ok: true},
		{completed: 1, total: 200, want: 1, ok: true},
		{completed: 1, total: 201, want: 0, ok: true},
		{completed: 7, total: 7, want: 100, ok: true},
	}

	for _, tt := range tests {
		got, ok := computeProgress(tt.completed, tt.total)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("computeProgress(%d, %d) = %d, %v; want %d, %v", tt.completed, tt.total, got, ok, tt.want, tt.ok)
		}
	}

	for total := 1; total <= 50; total++ {
		for completed := 0; completed <= total; completed++ {
			got, _ := computeProgress(completed, total)
			if got < 0 || got > 100 {
				t.Fatalf("computeProgress(%d, %d) = %d out of range", completed, total, got)
			}
		}
	}
}

func TestProgressFollowsTaskCompletion(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedProject(repo, "Q", 0)

	var ids []string
	for i, status := range []model.TaskStatus{model.TaskStatusCompleted, model.TaskStatusTodo, model.TaskStatusInProgress, model.TaskStatusReview} {
		task, err := svc.CreateTask(ctx, owner, model.TaskInput{ProjectID: "Q", Title: "task " + string(rune('a'+i)), Status: status})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	q, _ := repo.Project("Q")
	assert.Equal(t, 25, q.Progress)

	task, err := svc.UpdateTaskStatus(ctx, owner, ids[1], model.TaskStatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.CompletedAt.Equal(testNow))

	q, _ = repo.Project("Q")
	assert.Equal(t, 50, q.Progress)

	require.NoError(t, svc.DeleteTask(ctx, owner, ids[2]))
	q, _ = repo.Project("Q")
	assert.Equal(t, 67, q.Progress)

	progress, err := svc.RecalculateProgress(ctx, owner, "Q")
	require.NoError(t, err)
	assert.Equal(t, 67, progress)
}

func TestRecalculateProgressWithoutTasksKeepsValue(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.AddProject(model.Project{ID: "E", OwnerID: owner, Name: "Empty", Status: model.ProjectStatusActive, Progress: 40})

	progress, err := svc.RecalculateProgress(ctx, owner, "E")
	require.NoError(t, err)
	assert.Equal(t, 40, progress)

	repo.AddTask(model.Task{ID: "t1", ProjectID: "E", Title: "only", Status: model.TaskStatusTodo})
	require.NoError(t, svc.DeleteTask(ctx, owner, "t1"))

	p, _ := repo.Project("E")
	assert.Equal(t, 40, p.Progress)
}

func TestTaskOperationsRejectInvalidInput(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedProject(repo, "Q", 0)

	_, err := svc.CreateTask(ctx, owner, model.TaskInput{ProjectID: "Q", Title: "", Status: model.TaskStatusTodo})
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = svc.CreateTask(ctx, owner, model.TaskInput{ProjectID: "other", Title: "x", Status: model.TaskStatusTodo})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.UpdateTaskStatus(ctx, owner, "missing", model.TaskStatusCompleted)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.UpdateTaskStatus(ctx, owner, "missing", "FINISHED")
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = svc.RecalculateProgress(ctx, "intruder", "Q")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestApplyTaskStatus(t *testing.T) {
	earlier := testNow.Add(-time.Hour)

	task := &model.Task{Status: model.TaskStatusTodo}
	applyTaskStatus(task, model.TaskStatusCompleted, testNow)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.CompletedAt.Equal(testNow))

	task = &model.Task{Status: model.TaskStatusCompleted, CompletedAt: &earlier}
	applyTaskStatus(task, model.TaskStatusCompleted, testNow)
	assert.True(t, task.CompletedAt.Equal(earlier))

	applyTaskStatus(task, model.TaskStatusReview, testNow)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, model.TaskStatusReview, task.Status)
}
