package board

import (
	"context"
	"errors"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"

	"go.uber.org/zap"
)

const (
	CodeMutationInFlight     = "MUTATION_IN_FLIGHT"
	CodeConfirmationRequired = "CONFIRMATION_REQUIRED"
)

// ErrDeclined - пользователь отказался подтверждать удаление
var ErrDeclined = errors.New("удаление отменено пользователем")

type Op string

const (
	OpCreate Op = "create"
	OpEdit   Op = "edit"
	OpToggle Op = "toggle"
	OpDelete Op = "delete"
)

type State string

const (
	StatePending    State = "pending"
	StateConfirmed  State = "confirmed"
	StateRolledBack State = "rolled_back"
	StateRejected   State = "rejected"
)

// Outcome - результат изменения. Task заполнен для Confirmed и Pending,
// Err - для RolledBack и Rejected.
type Outcome struct {
	Op     Op
	State  State
	TaskID string
	Task   *task.Task
	Err    error
}

func (o Outcome) Ok() bool {
	return o.State == StateConfirmed
}

type Notice struct {
	Op      Op
	TaskID  string
	Message string
	Err     error
}

type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

// LogNotifier пишет уведомления в лог
var LogNotifier = NotifierFunc(func(n Notice) {
	logger.Warn("Board: "+n.Message,
		zap.String("op", string(n.Op)),
		zap.String("task_id", n.TaskID),
		zap.Error(n.Err))
})

// Confirmer решает, можно ли удалить задачу
type Confirmer interface {
	Confirm(ctx context.Context, t task.Task) (bool, error)
}

type ConfirmFunc func(ctx context.Context, t task.Task) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, t task.Task) (bool, error) {
	return f(ctx, t)
}

// Always подтверждает любое удаление
var Always = ConfirmFunc(func(context.Context, task.Task) (bool, error) {
	return true, nil
})

func noticeText(op Op) string {
	switch op {
	case OpCreate:
		return "Не удалось создать задачу"
	case OpEdit:
		return "Не удалось сохранить задачу"
	case OpToggle:
		return "Не удалось изменить статус задачи"
	case OpDelete:
		return "Не удалось удалить задачу"
	default:
		return "Операция не выполнена"
	}
}
