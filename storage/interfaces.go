package storage

import (
	"context"

	"github.com/poiesic/lexrag/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the storage backend and releases resources.
	Close() error
}

// RecordRepository persists long-term memory records, partitioned by user.
type RecordRepository interface {
	Repository

	// AddRecords stores one or more records.
	// Always assigns a new ID from the sequence; existing records are never overwritten.
	// Sets Timestamp if not already set.
	AddRecords(ctx context.Context, records ...*core.LongTermRecord) ([]*core.LongTermRecord, error)

	// GetRecord retrieves a single record by user and ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, userID string, id core.ID) (*core.LongTermRecord, error)

	// FindSimilar finds the user's records similar to the given vector.
	// Returns records with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, userID string, vector []float32, minSimilarity float32, limit int) ([]*core.MemoryGroup, error)

	// GetUserHistory retrieves up to limit of the user's records, newest first.
	// A limit <= 0 returns every record.
	GetUserHistory(ctx context.Context, userID string, limit int) ([]*core.LongTermRecord, error)

	// DeleteUserRecords removes every record owned by the user.
	DeleteUserRecords(ctx context.Context, userID string) (int, error)

	// AllRecords returns every stored record of every user, grouped by user
	// and in ID order within a user.
	AllRecords(ctx context.Context) ([]*core.LongTermRecord, error)

	// UpdateRecords overwrites existing records, keeping their IDs.
	// Returns ErrNotFound if any record doesn't exist; nothing is written then.
	UpdateRecords(ctx context.Context, records ...*core.LongTermRecord) error
}
