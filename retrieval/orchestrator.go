package retrieval

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lexrag/ai"
	"github.com/poiesic/lexrag/core"
	"github.com/poiesic/lexrag/index"
)

// DefaultCallTimeout bounds each embedding and index call.
const DefaultCallTimeout = 10 * time.Second

// Orchestrator runs multi-query retrieval against the passage index.
type Orchestrator struct {
	embedder    ai.Embedder
	searcher    index.Searcher
	pool        *ants.Pool
	callTimeout time.Duration
	monitor     Monitor
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithPoolSize sets the number of queries searched concurrently.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}
		if o.pool != nil {
			o.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		o.pool = pool
		return nil
	}
}

// WithCallTimeout bounds every embedding and index call.
// Default is DefaultCallTimeout; zero disables the bound.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) error {
		if timeout < 0 {
			return errors.New("call timeout cannot be negative")
		}
		o.callTimeout = timeout
		return nil
	}
}

// WithMonitor installs retrieval hooks.
func WithMonitor(monitor Monitor) Option {
	return func(o *Orchestrator) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		o.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates an orchestrator over the given ports.
// Release must be called to free the worker pool.
func NewOrchestrator(embedder ai.Embedder, searcher index.Searcher, opts ...Option) (*Orchestrator, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}

	poolSize := runtime.NumCPU()
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		embedder:    embedder,
		searcher:    searcher,
		pool:        pool,
		callTimeout: DefaultCallTimeout,
		monitor:     &noopMonitor{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			o.Release()
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "retrieval")
	return o, nil
}

// Release frees the worker pool. The orchestrator must not be used afterwards.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}

// queryResult holds the outcome of one query's search.
type queryResult struct {
	passages []core.Passage
	err      error
}

// Search embeds every query, searches the index for topK candidates per
// query and returns at most topK passages merged across queries.
//
// Failed queries are dropped. Search fails with core.ErrRetrievalUnavailable
// only when every query fails.
func (o *Orchestrator) Search(ctx context.Context, queries []string, topK int, filter *core.HierarchyFilter) ([]core.Passage, error) {
	queries = normalizeQueries(queries)
	if len(queries) == 0 || topK <= 0 {
		return []core.Passage{}, nil
	}

	o.monitor.Start(queries)

	// Each query writes only its own slot, so merge order is query order.
	results := make([]queryResult, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			passages, err := o.searchOne(ctx, query, topK, filter)
			results[i] = queryResult{passages: passages, err: err}
		})
		if err != nil {
			wg.Done()
			results[i] = queryResult{err: fmt.Errorf("submit query: %w", err)}
		}
	}
	wg.Wait()

	var failures []error
	candidates := make([][]core.Passage, 0, len(results))
	for i, r := range results {
		if r.err != nil {
			o.logger.Warn("query failed", "query", queries[i], "err", r.err)
			o.monitor.QueryFailed(queries[i], r.err)
			failures = append(failures, fmt.Errorf("query %q: %w", queries[i], r.err))
			continue
		}
		o.monitor.QueryResults(queries[i], r.passages)
		candidates = append(candidates, r.passages)
	}

	if len(failures) == len(queries) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.Join(append([]error{core.ErrRetrievalUnavailable}, failures...)...)
	}

	ranked := Rerank(Merge(candidates...), topK)
	o.logger.Debug("retrieval complete", "queries", len(queries), "failed", len(failures), "passages", len(ranked))
	o.monitor.Finish(ranked)
	return ranked, nil
}

func (o *Orchestrator) searchOne(ctx context.Context, query string, topK int, filter *core.HierarchyFilter) ([]core.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedCtx, cancel := o.callContext(ctx)
	vector, err := o.embedder.EmbedText(embedCtx, query)
	cancel()
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.searcher.Search(searchCtx, vector, filter, topK)
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.callTimeout)
}

// NormalizeQuery lower-cases the query and collapses runs of whitespace.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// normalizeQueries normalizes every query and drops blanks and duplicates,
// keeping first-seen order.
func normalizeQueries(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = NormalizeQuery(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

// Merge concatenates candidate sets in order and removes duplicate IDs,
// keeping the highest-scoring occurrence at the position the ID was first
// seen.
func Merge(sets ...[]core.Passage) []core.Passage {
	positions := make(map[string]int)
	var merged []core.Passage
	for _, set := range sets {
		for _, p := range set {
			if i, ok := positions[p.ID]; ok {
				if p.Score > merged[i].Score {
					merged[i] = p
				}
				continue
			}
			positions[p.ID] = len(merged)
			merged = append(merged, p)
		}
	}
	return merged
}

// Rerank orders passages by score, then by hierarchy depth, then by their
// current position, and keeps at most topK.
func Rerank(passages []core.Passage, topK int) []core.Passage {
	ranked := slices.Clone(passages)
	slices.SortStableFunc(ranked, func(a, b core.Passage) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(b.Path.Depth(), a.Path.Depth())
	})
	if topK >= 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	if ranked == nil {
		ranked = []core.Passage{}
	}
	return ranked
}
