// Package storage provides storage abstractions for the relay.
package storage

import (
	"context"

	"github.com/peppasd/fog-relay/internal/domain"
)

// Store is the interface to the persistent collaborator backing the
// relay. Sessions and the aggregator call into it concurrently, so
// implementations must serialize conflicting writes internally.
type Store interface {
	// Connection registry
	CreateConnection(ctx context.Context, uid string) (*domain.Connection, error)
	GetConnection(ctx context.Context, uid string) (*domain.Connection, error)
	// TouchConnection sets last_seen to the current time.
	TouchConnection(ctx context.Context, uid string) error
	DeleteConnection(ctx context.Context, uid string) error
	ConnectionCount(ctx context.Context) (int, error)

	// Reading log
	AddReading(ctx context.Context, uid string, value float64, createdAt int64) error
	// RecentReadings returns at most n readings, newest first.
	RecentReadings(ctx context.Context, n int) ([]*domain.Reading, error)
	ReadingCount(ctx context.Context) (int, error)

	// Broadcast queue and delivery marks
	EnqueueMessage(ctx context.Context, payload string) (*domain.QueuedMessage, error)
	// PendingMessages returns the broadcasts not yet marked delivered to
	// uid, oldest first.
	PendingMessages(ctx context.Context, uid string) ([]*domain.QueuedMessage, error)
	// MarkDelivered is idempotent; marking the same pair twice is a no-op.
	MarkDelivered(ctx context.Context, uid string, messageID int64) error
	QueuedMessageCount(ctx context.Context) (int, error)
	DeliveredCount(ctx context.Context) (int, error)

	// Lifecycle
	Close() error
}

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
