package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	rep "taskBoard/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskService - единственный владелец долговременного состояния задач.
// Каждая операция перед обращением к хранилищу ждёт фиксированную задержку,
// которая имитирует сетевую латентность.
type TaskService struct {
	repo    TaskRepository
	latency time.Duration
	now     func() time.Time
	newID   func() string
	locks   *idLocks
}

type Option func(*TaskService)

func WithLatency(latency time.Duration) Option {
	return func(s *TaskService) {
		s.latency = latency
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *TaskService) {
		s.newID = newID
	}
}

const maxIDAttempts = 5

func NewTaskService(repo TaskRepository, options ...Option) *TaskService {
	s := &TaskService{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
		locks: newIDLocks(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		logger.Warn("Service: Хранилище не отвечает", zap.Error(err))
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

func (s *TaskService) ListTasks(ctx context.Context) ([]*task.Task, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.storageError("получение задач", err)
	}
	return tasks, nil
}

func (s *TaskService) GetTaskByID(ctx context.Context, id string) (*task.Task, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", id))
			return nil, NewNotFound(id)
		}
		return nil, s.storageError("получение задачи", err)
	}
	return found, nil
}

func (s *TaskService) CreateTask(ctx context.Context, fields task.Fields) (*task.Task, error) {
	fields.Title = strings.TrimSpace(fields.Title)
	if err := validate(task.Task{Title: fields.Title, Priority: fields.Priority, DueDate: fields.DueDate}); err != nil {
		return nil, err
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		created := &task.Task{
			ID:          s.newID(),
			Title:       fields.Title,
			Description: fields.Description,
			Priority:    fields.Priority,
			DueDate:     fields.DueDate.UTC(),
			Completed:   false,
			CreatedAt:   now,
			UpdatedAt:   now,
			Version:     1,
		}

		err := s.repo.Create(ctx, created)
		if errors.Is(err, rep.ErrVersionConflict) {
			logger.Warn("Service: Сгенерирован занятый id, повторяем", zap.String("task_id", created.ID))
			continue
		}
		if err != nil {
			return nil, s.storageError("создание задачи", err)
		}

		logger.Info("Service: Задача создана", zap.String("task_id", created.ID))
		return created, nil
	}

	return nil, NewBusinessError(CodeStorageUnavailable, "не удалось получить уникальный id задачи",
		ToDetail("attempts", maxIDAttempts))
}

// UpdateTask накладывает опции на сохранённую запись; неуказанные поля не меняются
func (s *TaskService) UpdateTask(ctx context.Context, id string, options ...task.TaskOption) (*task.Task, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", id))
			return nil, NewNotFound(id)
		}
		return nil, s.storageError("получение задачи", err)
	}

	merged := task.Apply(*current, options...)
	if merged.Version != current.Version {
		logger.Warn("Service: Обновление по устаревшей версии",
			zap.String("task_id", id),
			zap.Int("expected_version", merged.Version),
			zap.Int("actual_version", current.Version))
		return nil, NewVersionConflict(id, merged.Version, current.Version)
	}

	merged.ID = current.ID
	merged.CreatedAt = current.CreatedAt
	merged.Title = strings.TrimSpace(merged.Title)
	if err := validate(merged); err != nil {
		return nil, err
	}
	merged.UpdatedAt = s.stamp(current.UpdatedAt)

	if err := s.repo.Update(ctx, &merged); err != nil {
		switch {
		case errors.Is(err, rep.ErrNotFound):
			return nil, NewNotFound(id)
		case errors.Is(err, rep.ErrVersionConflict):
			return nil, NewVersionConflict(id, current.Version, -1)
		default:
			return nil, s.storageError("обновление задачи", err)
		}
	}

	return &merged, nil
}

// DeleteTask удаляет задачу; отсутствующий id - не ошибка, повторное удаление безопасно
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.storageError("удаление задачи", err)
	}

	logger.Info("Service: Задача удалена", zap.String("task_id", id))
	return nil
}

// stamp гарантирует строгий рост updatedAt даже при неподвижных часах
func (s *TaskService) stamp(prev time.Time) time.Time {
	now := s.now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (s *TaskService) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(s.latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TaskService) storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Error("Service: Ошибка хранилища", err, zap.String("operation", op))
	return NewStorageUnavailable(fmt.Errorf("%s: %w", op, err))
}

func validate(t task.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return NewValidationError("title", "название не может быть пустым")
	}
	if !t.Priority.Valid() {
		return NewValidationError("priority", fmt.Sprintf("допустимы low, medium, high, получено %q", t.Priority))
	}
	if t.DueDate.IsZero() {
		return NewValidationError("dueDate", "срок должен быть задан")
	}
	return nil
}
