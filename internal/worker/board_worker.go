package worker

import (
	"context"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/view"

	"go.uber.org/zap"
)

type Board interface {
	Refresh(ctx context.Context) error
	Summary() view.Summary
}

// BoardWorker периодически сверяет доску с хранилищем и сообщает о новых просрочках
type BoardWorker struct {
	board    Board
	interval time.Duration

	lastOverdue int
}

func NewBoardWorker(b Board, interval *time.Duration) *BoardWorker {
	var intervalToSet time.Duration
	if interval == nil || *interval <= 0 {
		intervalToSet = 5 * time.Minute
	} else {
		intervalToSet = *interval
	}

	return &BoardWorker{
		board:    b,
		interval: intervalToSet,
	}
}

func (w *BoardWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Debug("Worker: Фоновая сверка задач", zap.Time("started_at", time.Now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновая сверка останавливается")
			return
		}
	}
}

// Check возвращает число просроченных задач после сверки
func (w *BoardWorker) Check(ctx context.Context) int {
	start := time.Now()

	if err := w.board.Refresh(ctx); err != nil {
		logger.Warn("Worker: ошибка получения задач", zap.Error(err))
		return w.lastOverdue
	}

	summary := w.board.Summary()
	if summary.Overdue > w.lastOverdue {
		logger.Warn("Worker: Появились просроченные задачи",
			zap.Int("overdue", summary.Overdue),
			zap.Int("previous", w.lastOverdue))
	}
	w.lastOverdue = summary.Overdue

	logger.Info(
		"Worker: Завершение сверки задач",
		zap.Duration("ms", time.Since(start)),
		zap.Int("total", summary.Total),
		zap.Int("pending", summary.Pending),
		zap.Int("overdue", summary.Overdue),
	)
	return summary.Overdue
}
