// Package slot хранит всю коллекцию задач одним документом в именованной ячейке kv.Store.
package slot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskBoard/internal/kv"
	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	repo "taskBoard/internal/repository"

	"go.uber.org/zap"
)

const DefaultKey = "tasks_db"

const slowOperation = 100 * time.Millisecond

type TaskStorage struct {
	store kv.Store
	key   string
	// читать-изменять-записывать ячейку можно только под этой блокировкой
	mtx sync.Mutex
}

func New(store kv.Store, key string) *TaskStorage {
	if key == "" {
		key = DefaultKey
	}
	return &TaskStorage{store: store, key: key}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		logger.Error("Repository: Хранилище недоступно", err)
		return fmt.Errorf("проверка хранилища: %w", err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, err := s.load(ctx); err != nil {
		return err
	}
	return nil
}

func (s *TaskStorage) load(ctx context.Context) ([]*task.Task, error) {
	start := time.Now()
	defer warnIfSlow("load", start)

	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, kv.ErrMissing) {
		return []*task.Task{}, nil
	}
	if err != nil {
		logger.Error("Repository: Не удалось прочитать ячейку", err, zap.String("key", s.key))
		return nil, fmt.Errorf("чтение ячейки %s: %w", s.key, err)
	}

	tasks, err := decode(data)
	if err != nil {
		logger.Error("Repository: Ячейка не прошла проверку", err, zap.String("key", s.key))
		return nil, err
	}
	return tasks, nil
}

func (s *TaskStorage) save(ctx context.Context, tasks []*task.Task) error {
	start := time.Now()
	defer warnIfSlow("save", start)

	data, err := encode(tasks)
	if err != nil {
		return fmt.Errorf("сериализация задач: %w", err)
	}
	if err := s.store.Set(ctx, s.key, data); err != nil {
		logger.Error("Repository: Не удалось записать ячейку", err, zap.String("key", s.key))
		return fmt.Errorf("запись ячейки %s: %w", s.key, err)
	}
	return nil
}

func (s *TaskStorage) List(ctx context.Context) ([]*task.Task, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.load(ctx)
}

func (s *TaskStorage) GetByID(ctx context.Context, id string) (*task.Task, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	tasks, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	tasks, err := s.load(ctx)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if t.ID == taskToCreate.ID {
			return repo.ErrVersionConflict
		}
	}

	stored := *taskToCreate
	return s.save(ctx, append(tasks, &stored))
}

func (s *TaskStorage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	tasks, err := s.load(ctx)
	if err != nil {
		return err
	}

	for i, t := range tasks {
		if t.ID != taskToUpdate.ID {
			continue
		}
		if t.Version != taskToUpdate.Version {
			logger.Warn("Repository: Конфликт версий при обновлении задачи",
				zap.String("task_id", t.ID),
				zap.Int("expected_version", taskToUpdate.Version),
				zap.Int("stored_version", t.Version))
			return repo.ErrVersionConflict
		}

		stored := *taskToUpdate
		stored.Version++
		tasks[i] = &stored
		if err := s.save(ctx, tasks); err != nil {
			return err
		}
		taskToUpdate.Version = stored.Version
		return nil
	}
	return repo.ErrNotFound
}

func (s *TaskStorage) Delete(ctx context.Context, id string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	tasks, err := s.load(ctx)
	if err != nil {
		return err
	}

	filtered := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != id {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == len(tasks) {
		return nil
	}
	return s.save(ctx, filtered)
}

func warnIfSlow(op string, start time.Time) {
	if time.Since(start) > slowOperation {
		logger.Warn("Repository: Медленная операция", zap.String("operation", op), zap.Duration("ms", time.Since(start)))
	}
}
