package backend

import (
	"context"
	"errors"
	"fmt"

	"contabils/internal/amqp"
	applog "contabils/internal/log"
	"contabils/internal/ports"
	"contabils/internal/services"
	"contabils/internal/storage"
	"contabils/internal/storage/memory"
	"contabils/internal/storage/postgres"
)

type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateBackend opens the store, seeds the catalog and connects the event
// publisher. A broker that cannot be reached only disables publishing.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}
	result := &BackendResult{Store: store, Cleanup: store.Close}

	if config.Seed {
		if err := services.NewCatalogService(store).Seed(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			result.Events = client
			result.Cleanup = func() error {
				return errors.Join(client.Close(), store.Close())
			}
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.InfoContext(ctx, "Initialized data backend",
		"type", config.Type,
		"events_enabled", result.Events != nil)
	return result, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (ports.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite repository: %w", err)
		}
		return repo, nil
	case PostgresBackend:
		repo, err := postgres.New(ctx, config.DatabaseURL, config.DatabaseMaxConns)
		if err != nil {
			return nil, fmt.Errorf("initialize Postgres repository: %w", err)
		}
		return repo, nil
	case MemoryBackend:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
