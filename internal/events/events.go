package events

import (
	"context"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/logger"

	"go.uber.org/zap"
)

// Event - исход изменения задачи в виде для внешних потребителей
type Event struct {
	Op     string    `json:"op"`
	State  string    `json:"state"`
	TaskID string    `json:"taskId"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

func FromOutcome(o board.Outcome, at time.Time) Event {
	e := Event{
		Op:     string(o.Op),
		State:  string(o.State),
		TaskID: o.TaskID,
		At:     at.UTC(),
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher пишет события в лог, когда брокер не настроен
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	logger.Info("Events: Исход изменения",
		zap.String("op", e.Op),
		zap.String("state", e.State),
		zap.String("task_id", e.TaskID),
		zap.String("error", e.Error),
		zap.Time("at", e.At))
	return nil
}

func (LogPublisher) Close() error {
	return nil
}
