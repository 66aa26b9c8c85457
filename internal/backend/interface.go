// Package backend builds the data store and event publisher selected by
// configuration.
package backend

import (
	"context"

	"contabils/internal/ports"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult holds the ready store. Events is nil when publishing is off.
type BackendResult struct {
	Store   ports.Store
	Events  ports.EventPublisher
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath     string
	DatabaseURL      string
	DatabaseMaxConns int

	// Publishing is enabled when AMQPURL is set.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Seed inserts the default catalog on start.
	Seed bool
}

type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
