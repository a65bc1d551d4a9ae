package reembed

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/poiesic/lexrag/ai/mock"
	"github.com/poiesic/lexrag/core"
	"github.com/poiesic/lexrag/storage"
	"github.com/poiesic/lexrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) storage.RecordRepository {
	t.Helper()
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

// addExchanges stores n single-exchange records for userID.
func addExchanges(t *testing.T, repo storage.RecordRepository, userID string, n int) []*core.LongTermRecord {
	t.Helper()
	now := time.Now().UTC()
	records := make([]*core.LongTermRecord, n)
	for i := range records {
		records[i] = &core.LongTermRecord{
			UserID:    userID,
			SessionID: "s1",
			Turns: []core.MemoryTurn{
				{Role: core.RoleUser, Text: fmt.Sprintf("question %d", i), Timestamp: now},
				{Role: core.RoleAssistant, Text: fmt.Sprintf("réponse %d", i), Timestamp: now},
			},
			Vector:    []float32{1, 0},
			Timestamp: now,
		}
	}
	added, err := repo.AddRecords(context.Background(), records...)
	require.NoError(t, err)
	return added
}

// unnormalized returns {1, 2, 2} for every text, magnitude 3.
func unnormalized() *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 2, 2}
		}
		return out, nil
	}
	return embedder
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestBatchProcessor_Process(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	added := addExchanges(t, repo, "u1", 2)

	embedder := unnormalized()
	processor := NewBatchProcessor(repo, embedder, 3, time.Millisecond)
	require.NoError(t, processor.Process(ctx, added))

	assert.Equal(t, []string{
		"user: question 0\nassistant: réponse 0\n",
		"user: question 1\nassistant: réponse 1\n",
	}, embedder.Texts(), "records are embedded from their transcripts")

	for _, record := range added {
		got, err := repo.GetRecord(ctx, "u1", record.ID)
		require.NoError(t, err)
		require.Len(t, got.Vector, 3)
		assert.InDelta(t, 1.0, magnitude(got.Vector), 1e-6)
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	embedder := unnormalized()
	processor := NewBatchProcessor(setupTestRepo(t), embedder, 3, time.Millisecond)
	require.NoError(t, processor.Process(context.Background(), nil))
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessor_RetriesTransientFailures(t *testing.T) {
	repo := setupTestRepo(t)
	added := addExchanges(t, repo, "u1", 1)

	attempts := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, fmt.Errorf("%w: 503", core.ErrEmbeddingUnavailable)
		}
		return [][]float32{{0, 3, 4}}, nil
	}

	processor := NewBatchProcessor(repo, embedder, 3, time.Millisecond)
	require.NoError(t, processor.Process(context.Background(), added))
	assert.Equal(t, 3, attempts)

	got, err := repo.GetRecord(context.Background(), "u1", added[0].ID)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.6, 0.8}, got.Vector, 1e-6)
}

func TestBatchProcessor_PermanentFailure(t *testing.T) {
	repo := setupTestRepo(t)
	added := addExchanges(t, repo, "u1", 1)

	attempts := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		attempts++
		return nil, assert.AnError
	}

	err := NewBatchProcessor(repo, embedder, 3, time.Millisecond).Process(context.Background(), added)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, attempts, "non-transient errors are not retried")

	got, err := repo.GetRecord(context.Background(), "u1", added[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got.Vector, "failed batches are not written")
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	repo := setupTestRepo(t)
	added := addExchanges(t, repo, "u1", 2)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}

	err := NewBatchProcessor(repo, embedder, 1, time.Millisecond).Process(context.Background(), added)
	assert.ErrorContains(t, err, "embedding count mismatch")
}
