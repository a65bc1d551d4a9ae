package reembed

import (
	"context"

	"github.com/poiesic/lexrag/core"
)

// DefaultBatchSize is the number of records embedded per request.
const DefaultBatchSize = 100

// RecordIterator walks a loaded record set in fixed-size batches.
type RecordIterator struct {
	records   []*core.LongTermRecord
	batchSize int
}

// NewRecordIterator creates an iterator over records.
// A batchSize below one selects DefaultBatchSize.
func NewRecordIterator(records []*core.LongTermRecord, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RecordIterator{records: records, batchSize: batchSize}
}

// Len returns the number of records.
func (it *RecordIterator) Len() int {
	return len(it.records)
}

// ForEach calls fn for each batch in order.
// It stops at the first error from fn and checks ctx before every batch.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.LongTermRecord) error) error {
	for start := 0; start < len(it.records); start += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+it.batchSize, len(it.records))
		if err := fn(it.records[start:end]); err != nil {
			return err
		}
	}
	return nil
}
