// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/lexrag/ai"
	"github.com/poiesic/lexrag/core"
	"github.com/poiesic/lexrag/ingestion"
	"github.com/poiesic/lexrag/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of records embedded per request
	BatchSize int

	// ReportInterval is how often progress is printed, in records
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder re-embeds every long-term record in a repository.
type Reembedder struct {
	repo      storage.RecordRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder. A nil config selects
// DefaultConfig; a nil progress writer discards progress output.
func NewReembedder(repo storage.RecordRepository, embedder ai.Embedder, config *Config, progress io.Writer, logger *slog.Logger) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize < 1 {
		return nil, ErrInvalidBatchSize
	}
	if config.MaxRetries < 1 {
		return nil, ai.ErrInvalidMaxAttempts
	}
	if progress == nil {
		progress = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		logger:    logger.With("component", "reembedder"),
	}, nil
}

// Run re-embeds all records and returns how many were updated.
// It stops at the first failed batch; batches before it stay updated.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	records, err := r.repo.AllRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query records: %w", err)
	}

	iter := NewRecordIterator(records, r.config.BatchSize)
	total := iter.Len()
	if total == 0 {
		fmt.Fprintf(r.progress, "No long-term records found (0 records)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Re-embedding %d records (batch size: %d)\n", total, r.config.BatchSize)
	tracker := ingestion.NewProgressTracker(r.progress, total, max(r.config.ReportInterval, 1)).
		Label("Re-embedded", "records")
	tracker.Start()

	processed := 0
	err = iter.ForEach(ctx, func(batch []*core.LongTermRecord) error {
		if err := r.processor.Process(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch at record %d: %w", processed, err)
		}
		processed += len(batch)
		tracker.Increment(len(batch))
		return nil
	})
	tracker.Finish()
	if err != nil {
		r.logger.Error("reembedding stopped", "processed", processed, "total", total, "err", err)
		return processed, err
	}

	elapsed := tracker.Elapsed()
	r.logger.Info("reembedding complete", "records", processed, "elapsed", elapsed.Round(time.Millisecond))
	fmt.Fprintf(r.progress, "Re-embedding complete. Processed %d records in %v\n",
		processed, elapsed.Round(time.Millisecond))
	return processed, nil
}
