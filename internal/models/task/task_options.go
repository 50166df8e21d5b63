package task

import (
	"time"
)

type TaskOption func(*Task)

func WithTitle(title string) TaskOption {
	return func(task *Task) {
		task.Title = title
	}
}

// пустое описание допустимо, поэтому опция применяется всегда
func WithDescription(description string) TaskOption {
	return func(task *Task) {
		task.Description = description
	}
}

func WithPriority(priority Priority) TaskOption {
	if priority == "" {
		return nil
	}
	return func(task *Task) {
		task.Priority = priority
	}
}

// срок в прошлом разрешён: просрочка - производное свойство
func WithDueDate(dueDate time.Time) TaskOption {
	if dueDate.IsZero() {
		return nil
	}
	return func(task *Task) {
		task.DueDate = dueDate.UTC()
	}
}

func WithCompleted(completed bool) TaskOption {
	return func(task *Task) {
		task.Completed = completed
	}
}

// WithVersion - предусловие: обновление пройдёт, только если текущая версия совпадает
func WithVersion(version int) TaskOption {
	return func(task *Task) {
		task.Version = version
	}
}

// Apply применяет опции к копии задачи, nil-опции пропускаются
func Apply(t Task, options ...TaskOption) Task {
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&t)
	}
	return t
}
