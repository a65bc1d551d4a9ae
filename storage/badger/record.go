package badger

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lexrag/core"
	"github.com/poiesic/lexrag/storage"
)

// RecordRepository implements storage.RecordRepository for BadgerDB.
type RecordRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(backend *Backend) (*RecordRepository, error) {
	idSeq, err := backend.GetSequence(recordIDSeq)
	if err != nil {
		return nil, err
	}

	return &RecordRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *RecordRepository) Close() error {
	return r.idSeq.Release()
}

// AddRecords stores one or more records under fresh IDs.
func (r *RecordRepository) AddRecords(ctx context.Context, records ...*core.LongTermRecord) ([]*core.LongTermRecord, error) {
	for _, record := range records {
		if record != nil && record.Timestamp.IsZero() {
			record.Timestamp = time.Now().UTC()
		}
		if err := core.ValidateLongTermRecord(record); err != nil {
			return nil, err
		}
		if err := validateUserID(record.UserID); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			record.ID = core.ID(nextID)

			key := makeRecordKey(record.UserID, record.ID)
			if err := tx.Set(key, storage.MarshalLongTermRecord(record)); err != nil {
				return err
			}

			dateKey := makeRecordDateKey(record.UserID, record.Timestamp, record.ID)
			if err := tx.Set(dateKey, storage.MarshalID(record.ID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// GetRecord retrieves a single record by user and ID.
func (r *RecordRepository) GetRecord(ctx context.Context, userID string, id core.ID) (*core.LongTermRecord, error) {
	var record *core.LongTermRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = readRecord(tx, makeRecordKey(userID, id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, storage.ErrNotFound
	}
	return record, nil
}

// FindSimilar scans the user's records and returns those whose cosine
// similarity to vector is at least minSimilarity.
func (r *RecordRepository) FindSimilar(ctx context.Context, userID string, vector []float32, minSimilarity float32, limit int) ([]*core.MemoryGroup, error) {
	if limit <= 0 || len(vector) == 0 {
		return nil, nil
	}

	var results []*core.MemoryGroup
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeUserRecordPrefix(userID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var record *core.LongTermRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalLongTermRecord(val)
				return err
			})
			if err != nil {
				return err
			}

			// Skip records without embeddings
			if record == nil || len(record.Vector) == 0 {
				continue
			}

			similarity := cosineSimilarity(vector, record.Vector)
			if similarity >= minSimilarity {
				results = append(results, &core.MemoryGroup{
					Record: record,
					Score:  similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending, newer records first on ties
	slices.SortStableFunc(results, func(a, b *core.MemoryGroup) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return b.Record.Timestamp.Compare(a.Record.Timestamp)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetUserHistory walks the user's date index backwards.
func (r *RecordRepository) GetUserHistory(ctx context.Context, userID string, limit int) ([]*core.LongTermRecord, error) {
	var results []*core.LongTermRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Use reverse iterator to get most recent records first
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := makeUserDatePrefix(userID)
		for iter.Seek(prefixEnd(prefix)); iter.Valid(); iter.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}
			if !bytes.HasPrefix(iter.Item().Key(), prefix) {
				break
			}

			var recordID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				recordID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			record, err := readRecord(tx, makeRecordKey(userID, recordID))
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)

	return results, err
}

// DeleteUserRecords removes every record and index entry owned by the user.
func (r *RecordRepository) DeleteUserRecords(ctx context.Context, userID string) (int, error) {
	var deleted int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var keys [][]byte
		for _, prefix := range [][]byte{makeUserRecordPrefix(userID), makeUserDatePrefix(userID)} {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				keys = append(keys, iter.Item().KeyCopy(nil))
				if bytes.HasPrefix(iter.Item().Key(), []byte(recordPrefix)) {
					deleted++
				}
			}
			iter.Close()
		}
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// AllRecords scans the primary record keys of every user.
func (r *RecordRepository) AllRecords(ctx context.Context) ([]*core.LongTermRecord, error) {
	var results []*core.LongTermRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record *core.LongTermRecord
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalLongTermRecord(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, record)
		}
		return nil
	}, false)
	return results, err
}

// UpdateRecords rewrites records under their existing keys.
// The date index is keyed by the original timestamp, so Timestamp is kept.
func (r *RecordRepository) UpdateRecords(ctx context.Context, records ...*core.LongTermRecord) error {
	for _, record := range records {
		if err := core.ValidateLongTermRecord(record); err != nil {
			return err
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := makeRecordKey(record.UserID, record.ID)
			existing, err := readRecord(tx, key)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("record %s of %q: %w", record.ID, record.UserID, storage.ErrNotFound)
			}

			updated := *record
			updated.Timestamp = existing.Timestamp
			if err := tx.Set(key, storage.MarshalLongTermRecord(&updated)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readRecord reads a record from the transaction.
// Returns nil, nil when the key is absent.
func readRecord(tx *badger.Txn, key []byte) (*core.LongTermRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.LongTermRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalLongTermRecord(val)
		return unmarshalErr
	})
	return record, err
}

func validateUserID(userID string) error {
	if strings.IndexByte(userID, keySeparator) >= 0 {
		return fmt.Errorf("%w: user id contains a NUL byte", storage.ErrInvalidQuery)
	}
	return nil
}
