package app

import (
	"context"
	"errors"
	"fmt"

	"taskBoard/internal/assist"
	"taskBoard/internal/board"
	"taskBoard/internal/config"
	"taskBoard/internal/events"
	"taskBoard/internal/kv"
	"taskBoard/internal/logger"
	"taskBoard/internal/repository/task/inmemory"
	"taskBoard/internal/repository/task/postgres"
	"taskBoard/internal/repository/task/slot"
	"taskBoard/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Core - общее ядро для HTTP API и CLI
type Core struct {
	Service    *service.TaskService
	Board      *board.Board
	Parser     assist.Parser
	Dispatcher *events.Dispatcher

	closers []func()
}

func NewCore(ctx context.Context, cfg *config.Config, notifier board.Notifier, fs afero.Fs) (*Core, error) {
	c := &Core{}

	repo, err := c.openRepository(ctx, cfg, fs)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Service = service.NewTaskService(repo, service.WithLatency(cfg.Storage.Latency))

	publisher := c.openPublisher(cfg)
	c.Dispatcher = events.NewDispatcher(publisher, cfg.Events.Buffer, cfg.Events.Timeout)

	c.Board = board.New(c.Service, notifier, board.WithOutcomeHook(c.Dispatcher.Hook))

	if cfg.Assist.APIKey != "" {
		parser, err := assist.NewGeminiParser(ctx, cfg.Assist.Model, genai.ClientConfig{APIKey: cfg.Assist.APIKey})
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Parser = parser
	} else {
		logger.Info("Core: Ключ gemini не задан, подсказки отключены")
	}

	return c, nil
}

func (c *Core) openRepository(ctx context.Context, cfg *config.Config, fs afero.Fs) (service.TaskRepository, error) {
	logger.Info("Core: Подключение хранилища", zap.String("type", cfg.Storage.Type))

	switch cfg.Storage.Type {
	case "memory":
		return inmemory.NewTaskStorage(), nil

	case "file":
		store, err := kv.NewFileStore(fs, cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("файловое хранилище: %w", err)
		}
		c.closers = append(c.closers, func() { _ = store.Close() })
		return slot.New(store, cfg.Storage.Key), nil

	case "sqlite":
		store, err := kv.NewSQLiteStore(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite хранилище: %w", err)
		}
		c.closers = append(c.closers, func() { _ = store.Close() })
		return slot.New(store, cfg.Storage.Key), nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := kv.NewRedisStore(rdb, cfg.Redis.Prefix)
		c.closers = append(c.closers, func() { _ = store.Close() })
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("подключение к redis: %w", err)
		}
		return slot.New(store, cfg.Storage.Key), nil

	case "postgres":
		if cfg.Database.Migrate {
			if err := postgres.Migrate(cfg.Database.URL); err != nil {
				return nil, err
			}
		}
		storage, err := postgres.New(ctx, cfg.Database.URL, postgres.Options{
			MaxConns:    cfg.Database.MaxConnections,
			MinConns:    cfg.Database.MinConnections,
			IdleTimeout: cfg.Database.IdleTimeout,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, storage.Close)
		return storage, nil
	}

	return nil, errors.New("неизвестный тип хранилища " + cfg.Storage.Type)
}

func (c *Core) openPublisher(cfg *config.Config) events.Publisher {
	var publisher events.Publisher = events.LogPublisher{}
	if cfg.Events.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		logger.Info("Core: События отправляются в kafka",
			zap.Strings("brokers", cfg.Events.Brokers),
			zap.String("topic", cfg.Events.Topic))
	}
	c.closers = append(c.closers, func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Core: Ошибка закрытия публикатора событий", zap.Error(err))
		}
	})
	return publisher
}

// Close дописывает накопленные события и освобождает ресурсы в обратном порядке
func (c *Core) Close() {
	if c.Dispatcher != nil {
		drained, cancel := context.WithCancel(context.Background())
		cancel()
		c.Dispatcher.Run(drained)
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
