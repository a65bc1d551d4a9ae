// Package chromem implements the passage index on chromem-go, an embedded
// pure-Go vector database.
//
// Each passage is stored as one document. Its hierarchy path is flattened into
// metadata keys h0, h1, ... plus a depth key so that hierarchy filters can be
// expressed as chromem's exact-match where clauses.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"github.com/poiesic/lexrag/core"
	"github.com/poiesic/lexrag/index"
)

const (
	// DefaultCollection is the collection used when none is configured.
	DefaultCollection = "passages"

	metaDepth  = "depth"
	metaSource = "source"
)

// ErrPassageVectorMismatch indicates passages and vectors differ in length.
var ErrPassageVectorMismatch = errors.New("passages and vectors must have the same length")

// Index implements index.Index on a chromem collection.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *slog.Logger
}

var _ index.Index = (*Index)(nil)

// Option configures an Index.
type Option func(*options) error

type options struct {
	collection string
	logger     *slog.Logger
}

// WithCollection selects the collection name. Default is DefaultCollection.
func WithCollection(name string) Option {
	return func(o *options) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("collection name cannot be empty")
		}
		o.collection = name
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// New creates an in-memory index.
func New(opts ...Option) (*Index, error) {
	return open(chromem.NewDB(), opts...)
}

// NewPersistent opens or creates an index persisted under path.
func NewPersistent(path string, opts ...Option) (*Index, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return open(db, opts...)
}

func open(db *chromem.DB, opts ...Option) (*Index, error) {
	o := &options{
		collection: DefaultCollection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	// No embedding func: vectors are always supplied by the caller.
	col, err := db.GetOrCreateCollection(o.collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Index{
		db:         db,
		collection: col,
		logger:     o.logger.With("component", "chromem-index", "collection", o.collection),
	}, nil
}

// Count returns the number of indexed passages.
func (ix *Index) Count() int {
	return ix.collection.Count()
}

// AddPassages stores passages with their vectors.
func (ix *Index) AddPassages(ctx context.Context, passages []core.Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return ErrPassageVectorMismatch
	}
	for i, p := range passages {
		if p.ID == "" {
			return fmt.Errorf("passage %d: id is required", i)
		}
		if len(vectors[i]) == 0 {
			return fmt.Errorf("passage %s: %w", p.ID, index.ErrDimensionMismatch)
		}
		doc := chromem.Document{
			ID:        p.ID,
			Content:   p.Text,
			Embedding: vectors[i],
			Metadata:  encodeMetadata(p),
		}
		if err := ix.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %s: %w", p.ID, err)
		}
	}
	ix.logger.Debug("indexed passages", "count", len(passages), "total", ix.Count())
	return nil
}

// Search returns up to limit passages nearest to vector.
func (ix *Index) Search(ctx context.Context, vector []float32, filter *core.HierarchyFilter, limit int) ([]core.Passage, error) {
	if limit <= 0 {
		return nil, nil
	}
	// chromem-go requires nResults <= collection size
	total := ix.collection.Count()
	if total == 0 {
		return nil, nil
	}
	if limit > total {
		limit = total
	}

	where := whereClause(filter)

	var results []chromem.Result
	for currentLimit := limit; currentLimit >= 1; currentLimit-- {
		var err error
		results, err = ix.collection.QueryEmbedding(ctx, vector, currentLimit, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) && currentLimit > 1 {
			continue
		}
		if isInsufficientDocsError(err) {
			return nil, nil
		}
		ix.logger.Warn("chromem query failed", "err", err)
		return nil, fmt.Errorf("%w: %w", index.ErrIndexUnavailable, err)
	}

	passages := make([]core.Passage, 0, len(results))
	for _, r := range results {
		p := decodeMetadata(r.Metadata)
		p.ID = r.ID
		p.Text = r.Content
		p.Score = r.Similarity
		// Exact filters are enforced by depth metadata; prefix filters by h* keys.
		if !filter.Matches(p.Path) {
			continue
		}
		passages = append(passages, p)
	}

	ix.logger.Debug("search complete", "limit", limit, "hits", len(passages))
	return passages, nil
}

func encodeMetadata(p core.Passage) map[string]string {
	meta := make(map[string]string, len(p.Path)+2)
	for i, label := range p.Path {
		meta[levelKey(i)] = label
	}
	meta[metaDepth] = strconv.Itoa(len(p.Path))
	if p.Source != "" {
		meta[metaSource] = p.Source
	}
	return meta
}

func decodeMetadata(meta map[string]string) core.Passage {
	var p core.Passage
	depth, _ := strconv.Atoi(meta[metaDepth])
	if depth > 0 {
		p.Path = make(core.HierarchyPath, 0, depth)
		for i := 0; i < depth; i++ {
			p.Path = append(p.Path, meta[levelKey(i)])
		}
	}
	p.Source = meta[metaSource]
	return p
}

func whereClause(filter *core.HierarchyFilter) map[string]string {
	if filter.IsEmpty() {
		return nil
	}
	where := make(map[string]string, len(filter.Labels)+1)
	for i, label := range filter.Labels {
		where[levelKey(i)] = label
	}
	if filter.Exact {
		where[metaDepth] = strconv.Itoa(len(filter.Labels))
	}
	return where
}

func levelKey(i int) string {
	return "h" + strconv.Itoa(i)
}

func isInsufficientDocsError(err error) bool {
	return strings.Contains(err.Error(), "nResults must be <=")
}
