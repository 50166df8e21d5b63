package handlers

import (
	"context"

	"taskBoard/internal/board"
	"taskBoard/internal/models/task"
	"taskBoard/internal/view"
)

type Board interface {
	View(view.Query) []task.Task
	Summary() view.Summary
	Create(context.Context, task.Fields) board.Outcome
	Edit(context.Context, string, ...task.TaskOption) board.Outcome
	Toggle(context.Context, string) board.Outcome
	Delete(context.Context, string, board.Confirmer) board.Outcome
}

type TaskReader interface {
	GetTaskByID(context.Context, string) (*task.Task, error)
	HealthCheck(context.Context) error
}
