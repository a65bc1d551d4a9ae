package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lexrag/ai"
	"github.com/poiesic/lexrag/core"
	"github.com/poiesic/lexrag/index"
)

// Defaults for a Pipeline.
const (
	DefaultBatchSize      = 32
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = time.Second
)

// Progress receives the number of passages written after every batch.
type Progress interface {
	Increment(delta int)
}

type noopProgress struct{}

func (noopProgress) Increment(int) {}

// Pipeline embeds passages and writes them to a vector index.
type Pipeline struct {
	embedder       ai.Embedder
	writer         index.Writer
	pool           *ants.Pool
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	progress       Progress
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of batches embedded concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets the number of passages embedded per request.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		p.batchSize = size
		return nil
	}
}

// WithRetry sets the attempts and base backoff delay for embedding calls.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts < 1 {
			return ai.ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.retryBaseDelay = baseDelay
		return nil
	}
}

// WithProgress reports written passages to progress.
func WithProgress(progress Progress) Option {
	return func(p *Pipeline) error {
		if progress == nil {
			progress = noopProgress{}
		}
		p.progress = progress
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(embedder ai.Embedder, writer index.Writer, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		embedder:       embedder,
		writer:         writer,
		pool:           pool,
		batchSize:      DefaultBatchSize,
		maxAttempts:    DefaultMaxAttempts,
		retryBaseDelay: DefaultRetryBaseDelay,
		progress:       noopProgress{},
		logger:         slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Ingest cleans, embeds and indexes passages, returning how many were written.
//
// Passages without an ID get one derived from their text. When an ID repeats,
// the last passage wins. Batches are independent: a failed batch is reported
// in the joined error while the others are still written.
func (p *Pipeline) Ingest(ctx context.Context, passages []core.Passage) (int, error) {
	prepared, err := preparePassages(passages)
	if err != nil {
		return 0, err
	}
	if len(prepared) == 0 {
		return 0, nil
	}

	batches := split(prepared, p.batchSize)
	p.logger.Info("indexing passages", "passages", len(prepared), "batches", len(batches))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		written int
		errs    []error
	)
	for i, batch := range batches {
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.processBatch(ctx, batch); err != nil {
				p.logger.Error("error indexing batch", "batch", i, "err", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("batch %d: %w", i, err))
				mu.Unlock()
				return
			}
			mu.Lock()
			written += len(batch)
			mu.Unlock()
			p.progress.Increment(len(batch))
		})
		if submitErr != nil {
			wg.Done()
			errs = append(errs, fmt.Errorf("batch %d: %w", i, submitErr))
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return written, err
	}
	return written, errors.Join(errs...)
}

func (p *Pipeline) processBatch(ctx context.Context, batch []core.Passage) error {
	texts := make([]string, len(batch))
	for i, passage := range batch {
		texts[i] = passage.Text
	}

	var vectors [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = p.embedder.EmbedTexts(ctx, texts)
		return err
	}, p.maxAttempts, p.retryBaseDelay, ai.IsTransient)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", p.maxAttempts, err)
	}

	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(batch), len(vectors))
	}
	for i := range vectors {
		vectors[i] = NormalizeVector(vectors[i])
	}

	return p.writer.AddPassages(ctx, batch, vectors)
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func preparePassages(passages []core.Passage) ([]core.Passage, error) {
	positions := make(map[string]int, len(passages))
	prepared := make([]core.Passage, 0, len(passages))
	for i, passage := range passages {
		passage.Text = CleanText(passage.Text)
		if passage.Text == "" {
			return nil, fmt.Errorf("passage %d: %w", i, ErrEmptyPassage)
		}
		if passage.ID == "" {
			passage.ID = core.IDFromContent(passage.Text).String()
		}
		passage.Score = 0

		if pos, ok := positions[passage.ID]; ok {
			prepared[pos] = passage
			continue
		}
		positions[passage.ID] = len(prepared)
		prepared = append(prepared, passage)
	}
	return prepared, nil
}

func split(passages []core.Passage, size int) [][]core.Passage {
	batches := make([][]core.Passage, 0, (len(passages)+size-1)/size)
	for start := 0; start < len(passages); start += size {
		end := min(start+size, len(passages))
		batches = append(batches, passages[start:end])
	}
	return batches
}
