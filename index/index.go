// Package index defines the vector index port used for passage retrieval.
//
// The index stores passages with their hierarchy path as metadata and answers
// nearest-neighbour queries restricted by an optional core.HierarchyFilter.
// Implementations live in sub-packages (index/chromem).
package index

import (
	"context"
	"errors"

	"github.com/poiesic/lexrag/core"
)

var (
	// ErrIndexUnavailable is core.ErrIndexUnavailable, re-exported for adapters.
	ErrIndexUnavailable = core.ErrIndexUnavailable

	// ErrDimensionMismatch indicates vectors of different lengths were mixed.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Searcher answers similarity queries over indexed passages.
type Searcher interface {
	// Search returns up to limit passages nearest to vector, ordered by
	// descending Score. A nil filter searches the whole index.
	// Failures wrap ErrIndexUnavailable.
	Search(ctx context.Context, vector []float32, filter *core.HierarchyFilter, limit int) ([]core.Passage, error)
}

// Writer adds passages to an index.
type Writer interface {
	// AddPassages stores passages with their precomputed vectors.
	// vectors[i] belongs to passages[i]. Passages with an existing ID are replaced.
	AddPassages(ctx context.Context, passages []core.Passage, vectors [][]float32) error

	// Count returns the number of indexed passages.
	Count() int
}

// Index is a Searcher that can also be written to.
type Index interface {
	Searcher
	Writer
}
