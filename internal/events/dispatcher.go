package events

import (
	"context"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/logger"

	"go.uber.org/zap"
)

// Dispatcher отвязывает публикацию от операций доски: Hook только ставит
// событие в очередь, отправкой занимается Run
type Dispatcher struct {
	pub     Publisher
	queue   chan Event
	timeout time.Duration
	now     func() time.Time
}

func NewDispatcher(pub Publisher, buffer int, timeout time.Duration) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		pub:     pub,
		queue:   make(chan Event, buffer),
		timeout: timeout,
		now:     time.Now,
	}
}

// Hook подходит для board.WithOutcomeHook. При переполненной очереди событие
// отбрасывается.
func (d *Dispatcher) Hook(o board.Outcome) {
	e := FromOutcome(o, d.now())
	select {
	case d.queue <- e:
	default:
		logger.Warn("Events: Очередь переполнена, событие отброшено",
			zap.String("op", e.Op), zap.String("task_id", e.TaskID))
	}
}

// Run отправляет события до отмены ctx, затем дописывает остаток очереди
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case e := <-d.queue:
			d.send(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-d.queue:
					d.send(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) send(e Event) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.pub.Publish(ctx, e); err != nil {
		logger.Error("Events: Не удалось опубликовать событие", err,
			zap.String("op", e.Op), zap.String("task_id", e.TaskID))
	}
}
