package retrieval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/lexrag/ai/mock"
	"github.com/poiesic/lexrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSearcher answers by the first vector component, which the test
// embedder sets to the query's position in the script.
type fakeSearcher struct {
	results map[float32][]core.Passage
	errs    map[float32]error
	delay   map[float32]time.Duration
	calls   atomic.Int32

	mu      sync.Mutex
	filters []*core.HierarchyFilter
	limits  []int
}

func (f *fakeSearcher) Search(ctx context.Context, vector []float32, filter *core.HierarchyFilter, limit int) ([]core.Passage, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	f.limits = append(f.limits, limit)
	f.mu.Unlock()

	key := vector[0]
	if d := f.delay[key]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.results[key], nil
}

func scriptedEmbedder(queries ...string) *mock.MockEmbedder {
	positions := make(map[string]float32, len(queries))
	for i, q := range queries {
		positions[q] = float32(i)
	}
	e := mock.NewMockEmbedder()
	e.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		pos, ok := positions[text]
		if !ok {
			return nil, core.ErrEmbeddingUnavailable
		}
		return []float32{pos, 1}, nil
	}
	return e
}

func passage(id string, score float32, path ...string) core.Passage {
	return core.Passage{ID: id, Text: "texte " + id, Score: score, Path: path}
}

func newTestOrchestrator(t *testing.T, embedder *mock.MockEmbedder, searcher *fakeSearcher, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(embedder, searcher, opts...)
	require.NoError(t, err)
	t.Cleanup(o.Release)
	return o
}

func TestNewOrchestrator_Validation(t *testing.T) {
	_, err := NewOrchestrator(nil, &fakeSearcher{})
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewOrchestrator(mock.NewMockEmbedder(), nil)
	assert.ErrorIs(t, err, ErrSearcherRequired)

	_, err = NewOrchestrator(mock.NewMockEmbedder(), &fakeSearcher{}, WithCallTimeout(-time.Second))
	assert.Error(t, err)
}

func TestSearch_EmptyQueriesMakeNoCalls(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	searcher := &fakeSearcher{}
	o := newTestOrchestrator(t, embedder, searcher)

	for _, queries := range [][]string{nil, {}, {"  ", "\n"}} {
		results, err := o.Search(context.Background(), queries, 5, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
	assert.Zero(t, embedder.CallCount())
	assert.Zero(t, searcher.calls.Load())
}

func TestSearch_DedupKeepsMaxScore(t *testing.T) {
	searcher := &fakeSearcher{results: map[float32][]core.Passage{
		0: {passage("art-113", 0.7, "Livre I", "Article 113")},
		1: {passage("art-113", 0.9, "Livre I", "Article 113")},
	}}
	o := newTestOrchestrator(t, scriptedEmbedder("congé maternité", "durée du congé"), searcher)

	results, err := o.Search(context.Background(), []string{"congé maternité", "durée du congé"}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "art-113", results[0].ID)
	assert.Equal(t, float32(0.9), results[0].Score)
}

func TestSearch_PartialFailure(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[float32][]core.Passage{
			2: {passage("art-64", 0.8, "Livre I", "Article 64")},
		},
		errs: map[float32]error{1: core.ErrIndexUnavailable},
	}
	// "inconnue" is not scripted, so its embedding fails
	embedder := scriptedEmbedder("a", "b", "c")
	o := newTestOrchestrator(t, embedder, searcher)

	results, err := o.Search(context.Background(), []string{"inconnue", "b", "c"}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "art-64", results[0].ID)
}

func TestSearch_AllFail(t *testing.T) {
	searcher := &fakeSearcher{errs: map[float32]error{
		0: core.ErrIndexUnavailable,
		1: core.ErrIndexUnavailable,
	}}
	o := newTestOrchestrator(t, scriptedEmbedder("a", "b"), searcher)

	_, err := o.Search(context.Background(), []string{"a", "b"}, 5, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRetrievalUnavailable)
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)
}

func TestSearch_RankingAndTruncation(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[float32][]core.Passage{
			0: {
				passage("titre-2", 0.8, "Livre I", "Titre II"),
				passage("art-10", 0.5, "Livre I", "Titre I", "Article 10"),
			},
			1: {
				passage("art-64", 0.8, "Livre I", "Titre II", "Article 64"),
				passage("livre-1", 0.95, "Livre I"),
				passage("art-11", 0.8, "Livre I", "Titre II", "Article 11"),
			},
		},
		// the first query answers last; merge order must still follow query order
		delay: map[float32]time.Duration{0: 20 * time.Millisecond},
	}
	o := newTestOrchestrator(t, scriptedEmbedder("q0", "q1"), searcher)

	results, err := o.Search(context.Background(), []string{"q0", "q1"}, 4, nil)
	require.NoError(t, err)

	ids := make([]string, len(results))
	for i, p := range results {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"livre-1", "art-64", "art-11", "titre-2"}, ids)
}

func TestSearch_PassesFilterAndTopK(t *testing.T) {
	searcher := &fakeSearcher{results: map[float32][]core.Passage{0: {passage("a", 0.5)}}}
	o := newTestOrchestrator(t, scriptedEmbedder("q"), searcher)
	filter := &core.HierarchyFilter{Labels: []string{"Livre I"}}

	_, err := o.Search(context.Background(), []string{"q"}, 7, filter)
	require.NoError(t, err)
	require.Len(t, searcher.filters, 1)
	assert.Same(t, filter, searcher.filters[0])
	assert.Equal(t, []int{7}, searcher.limits)
}

func TestSearch_NormalizesAndDedupesQueries(t *testing.T) {
	embedder := scriptedEmbedder("congé de maternité")
	searcher := &fakeSearcher{results: map[float32][]core.Passage{0: {passage("a", 0.5)}}}
	o := newTestOrchestrator(t, embedder, searcher)

	_, err := o.Search(context.Background(), []string{"  Congé  de\tMaternité ", "congé de maternité"}, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"congé de maternité"}, embedder.Texts())
	assert.Equal(t, int32(1), searcher.calls.Load())
}

func TestSearch_CallTimeout(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[float32][]core.Passage{1: {passage("fast", 0.5)}},
		delay:   map[float32]time.Duration{0: time.Second},
	}
	o := newTestOrchestrator(t, scriptedEmbedder("slow", "fast"), searcher, WithCallTimeout(20*time.Millisecond))

	results, err := o.Search(context.Background(), []string{"slow", "fast"}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fast", results[0].ID)
}

func TestSearch_Canceled(t *testing.T) {
	o := newTestOrchestrator(t, scriptedEmbedder("a"), &fakeSearcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Search(ctx, []string{"a"}, 3, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingMonitor struct {
	started  []string
	failed   []string
	seen     []string
	finished []core.Passage
}

func (m *recordingMonitor) Start(queries []string) { m.started = queries }
func (m *recordingMonitor) QueryFailed(query string, _ error) {
	m.failed = append(m.failed, query)
	m.seen = append(m.seen, query)
}
func (m *recordingMonitor) QueryResults(query string, _ []core.Passage) {
	m.seen = append(m.seen, query)
}
func (m *recordingMonitor) Finish(results []core.Passage) { m.finished = results }

func TestSearch_Monitor(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[float32][]core.Passage{0: {passage("a", 0.5)}},
		errs:    map[float32]error{1: errors.New("boom")},
	}
	monitor := &recordingMonitor{}
	o := newTestOrchestrator(t, scriptedEmbedder("ok", "ko"), searcher, WithMonitor(monitor), WithPoolSize(1))

	_, err := o.Search(context.Background(), []string{"ok", "ko"}, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "ko"}, monitor.started)
	assert.Equal(t, []string{"ko"}, monitor.failed)
	assert.Len(t, monitor.finished, 1)
}

func TestSearch_MonitorSeesQueriesInOrder(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[float32][]core.Passage{0: {passage("a", 0.5)}, 2: {passage("c", 0.4)}},
		errs:    map[float32]error{1: errors.New("boom")},
		delay:   map[float32]time.Duration{0: 30 * time.Millisecond},
	}
	monitor := &recordingMonitor{}
	o := newTestOrchestrator(t, scriptedEmbedder("lent", "ko", "rapide"), searcher, WithMonitor(monitor), WithPoolSize(3))

	_, err := o.Search(context.Background(), []string{"lent", "ko", "rapide"}, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"lent", "ko", "rapide"}, monitor.seen, "hooks follow query order, not arrival")
}

func TestMergeAndRerank(t *testing.T) {
	merged := Merge(
		[]core.Passage{passage("x", 0.5), passage("y", 0.6)},
		[]core.Passage{passage("y", 0.4), passage("z", 0.6), passage("x", 0.9)},
	)
	require.Len(t, merged, 3)
	assert.Equal(t, "x", merged[0].ID)
	assert.Equal(t, float32(0.9), merged[0].Score)
	assert.Equal(t, float32(0.6), merged[1].Score)

	ranked := Rerank(merged, 10)
	assert.Equal(t, []string{"x", "y", "z"}, []string{ranked[0].ID, ranked[1].ID, ranked[2].ID})

	assert.Len(t, Rerank(merged, 2), 2)
	assert.Empty(t, Rerank(nil, 3))
	assert.NotNil(t, Rerank(nil, 3))
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "durée du congé", NormalizeQuery("  Durée   DU\ncongé "))
	assert.Equal(t, "", NormalizeQuery(" \t "))
}
