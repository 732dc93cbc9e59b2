package backend

import (
	"context"

	"monthbook/internal/amqp"
	"monthbook/internal/storage"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult is a ready to use persistence backend and, when AMQP is
// configured, the client change notifications go through.
type BackendResult struct {
	Store storage.Repository
	// AMQP is nil when no broker is configured or it could not be reached.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional change notifications
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
