// Package repotest содержит общий набор проверок для всех реализаций хранилища задач.
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Repository interface {
	HealthCheck(ctx context.Context) error
	List(ctx context.Context) ([]*task.Task, error)
	GetByID(ctx context.Context, id string) (*task.Task, error)
	Create(ctx context.Context, t *task.Task) error
	Update(ctx context.Context, t *task.Task) error
	Delete(ctx context.Context, id string) error
}

// NewTask собирает валидную задачу с версией 1
func NewTask(title string) *task.Task {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &task.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: "описание " + title,
		Priority:    task.PriorityMedium,
		DueDate:     now.Add(24 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
}

// Run прогоняет контракт; newRepo должен возвращать пустое хранилище
func Run(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("health check", func(t *testing.T) {
		assert.NoError(t, newRepo(t).HealthCheck(ctx))
	})

	t.Run("empty list", func(t *testing.T) {
		tasks, err := newRepo(t).List(ctx)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("create and get", func(t *testing.T) {
		r := newRepo(t)
		created := NewTask("Купить молоко")
		require.NoError(t, r.Create(ctx, created))

		got, err := r.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Title, got.Title)
		assert.Equal(t, created.Priority, got.Priority)
		assert.True(t, created.DueDate.Equal(got.DueDate))
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, 1, got.Version)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := newRepo(t).GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("list keeps insertion order", func(t *testing.T) {
		r := newRepo(t)
		var ids []string
		for i := 0; i < 5; i++ {
			created := NewTask(fmt.Sprintf("Задача %d", i))
			require.NoError(t, r.Create(ctx, created))
			ids = append(ids, created.ID)
		}

		tasks, err := r.List(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 5)
		for i, got := range tasks {
			assert.Equal(t, ids[i], got.ID)
		}
	})

	t.Run("update bumps version", func(t *testing.T) {
		r := newRepo(t)
		created := NewTask("Старое название")
		require.NoError(t, r.Create(ctx, created))

		toUpdate := *created
		toUpdate.Title = "Новое название"
		toUpdate.Completed = true
		require.NoError(t, r.Update(ctx, &toUpdate))
		assert.Equal(t, 2, toUpdate.Version)

		got, err := r.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Новое название", got.Title)
		assert.True(t, got.Completed)
		assert.Equal(t, 2, got.Version)
	})

	t.Run("update stale version", func(t *testing.T) {
		r := newRepo(t)
		created := NewTask("Версия")
		require.NoError(t, r.Create(ctx, created))

		first := *created
		require.NoError(t, r.Update(ctx, &first))

		stale := *created
		stale.Title = "Устаревшая запись"
		err := r.Update(ctx, &stale)
		assert.ErrorIs(t, err, repository.ErrVersionConflict)

		got, err := r.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Версия", got.Title)
	})

	t.Run("update missing", func(t *testing.T) {
		r := newRepo(t)
		existing := NewTask("Существующая")
		require.NoError(t, r.Create(ctx, existing))

		err := r.Update(ctx, NewTask("Нет такой"))
		assert.ErrorIs(t, err, repository.ErrNotFound)

		tasks, err := r.List(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, existing.ID, tasks[0].ID)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		r := newRepo(t)
		keep := NewTask("Оставить")
		drop := NewTask("Удалить")
		require.NoError(t, r.Create(ctx, keep))
		require.NoError(t, r.Create(ctx, drop))

		require.NoError(t, r.Delete(ctx, drop.ID))
		require.NoError(t, r.Delete(ctx, drop.ID))
		require.NoError(t, r.Delete(ctx, uuid.NewString()))

		tasks, err := r.List(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, keep.ID, tasks[0].ID)
	})

	t.Run("returned tasks are copies", func(t *testing.T) {
		r := newRepo(t)
		created := NewTask("Копия")
		require.NoError(t, r.Create(ctx, created))

		got, err := r.GetByID(ctx, created.ID)
		require.NoError(t, err)
		got.Title = "Изменено снаружи"

		again, err := r.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Копия", again.Title)
	})
}
