package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"

	"go.uber.org/zap"
)

// ErrMalformed - модель вернула ответ, из которого нельзя собрать задачу
var ErrMalformed = errors.New("некорректный ответ модели")

// Suggestion - черновик задачи, извлечённый из текста
type Suggestion struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Priority    task.Priority `json:"priority"`
	DueDate     time.Time     `json:"dueDate"`
}

type Parser interface {
	Parse(ctx context.Context, text string) (*Suggestion, error)
}

// Suggest вызывает парсер не больше одного раза. Пустой ввод, ошибка модели
// или неполный ответ дают (nil, false).
func Suggest(ctx context.Context, p Parser, text string) (*Suggestion, bool) {
	if p == nil || strings.TrimSpace(text) == "" {
		return nil, false
	}

	s, err := p.Parse(ctx, text)
	if err != nil {
		logger.Warn("Assist: Не удалось разобрать текст", zap.Error(err))
		return nil, false
	}
	if err := s.validate(); err != nil {
		logger.Warn("Assist: Ответ модели отклонён", zap.Error(err))
		return nil, false
	}
	return s, true
}

func (s *Suggestion) validate() error {
	if s == nil {
		return fmt.Errorf("%w: пустой ответ", ErrMalformed)
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: нет названия", ErrMalformed)
	}
	if !s.Priority.Valid() {
		return fmt.Errorf("%w: приоритет %q", ErrMalformed, s.Priority)
	}
	if s.DueDate.IsZero() {
		return fmt.Errorf("%w: нет срока", ErrMalformed)
	}
	return nil
}

// Form - поля формы создания задачи в том виде, в каком их вводит пользователь
type Form struct {
	Title       string
	Description string
	Priority    string
	DueDate     string
}

// Fill переносит подсказку в форму. Без подсказки форма не меняется.
func (f *Form) Fill(s *Suggestion) bool {
	if s == nil {
		return false
	}
	f.Title = s.Title
	f.Description = s.Description
	f.Priority = string(s.Priority)
	f.DueDate = s.DueDate.UTC().Format(time.DateOnly)
	return true
}

func (f Form) Fields() (task.Fields, error) {
	fields := task.Fields{
		Title:       strings.TrimSpace(f.Title),
		Description: f.Description,
	}

	priority := f.Priority
	if strings.TrimSpace(priority) == "" {
		priority = string(task.PriorityMedium)
	}
	p, err := task.ParsePriority(priority)
	if err != nil {
		return task.Fields{}, err
	}
	fields.Priority = p

	due, err := task.ParseDueDate(f.DueDate)
	if err != nil {
		return task.Fields{}, err
	}
	fields.DueDate = due

	return fields, nil
}
