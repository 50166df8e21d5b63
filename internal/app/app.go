package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/config"
	"taskBoard/internal/handlers"
	"taskBoard/internal/logger"
	"taskBoard/internal/middleware"
	"taskBoard/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type App struct {
	config    *config.Config
	core      *Core
	server    *http.Server
	router    *chi.Mux
	worker    *worker.BoardWorker
	shutdowns []func() // функции для graceful shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) (*App, error) {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return nil, fmt.Errorf("инициализация логгера: %w", err)
	}

	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	core, err := NewCore(ctx, a.config, board.LogNotifier, afero.NewOsFs())
	if err != nil {
		return nil, fmt.Errorf("инициализация ядра: %w", err)
	}
	a.core = core
	a.shutdowns = append(a.shutdowns, core.Close)

	if err := core.Board.Load(ctx); err != nil {
		// сервер стартует и без данных, воркер повторит загрузку
		logger.Warn("App: Первичная загрузка задач не удалась", zap.Error(err))
	}

	a.router = NewRouter(a.config, handlers.NewTaskHandler(core.Board, core.Service, core.Parser))
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	interval := a.config.Worker.Interval
	a.worker = worker.NewBoardWorker(core.Board, &interval)

	return a, nil
}

func NewRouter(cfg *config.Config, h *handlers.TaskHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Instrument("taskboard"))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(middleware.RateLimit(cfg.Server.RateLimit))

	h.Register(r)
	return r
}

// Run блокируется до отмены ctx или падения сервера
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	var wg conc.WaitGroup

	wg.Go(func() {
		logger.Info("Server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			cancel()
		}
	})
	wg.Go(func() { a.worker.Start(ctx) })
	wg.Go(func() { a.core.Dispatcher.Run(ctx) })

	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer stop()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("App: Ошибка остановки сервера", err)
	}

	wg.Wait()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http сервер: %w", err)
	default:
		return nil
	}
}

func (a *App) Close() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
}
