package lexrag

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/lexrag/ai"
	"github.com/poiesic/lexrag/ai/mock"
	"github.com/poiesic/lexrag/core"
	"github.com/poiesic/lexrag/index/chromem"
	"github.com/poiesic/lexrag/reasoning"
	"github.com/poiesic/lexrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticSearcher returns the same passages for every vector.
type staticSearcher struct {
	passages []core.Passage
	err      error
}

func (s *staticSearcher) Search(ctx context.Context, vector []float32, filter *core.HierarchyFilter, limit int) ([]core.Passage, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]core.Passage, 0, len(s.passages))
	for _, p := range s.passages {
		if filter.Matches(p.Path) {
			out = append(out, p)
		}
	}
	return out[:min(limit, len(out))], nil
}

// legalCompleter answers each reasoning stage and records every prompt.
type legalCompleter struct {
	mu        sync.Mutex
	prompts   []string
	synthesis func(ctx context.Context) (string, error)
}

func (c *legalCompleter) Complete(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	synthesis := c.synthesis
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case strings.Contains(prompt, "Étape 1/3"):
		return "durée du congé de maternité\ncongé de maternité salariée enceinte", nil
	case strings.Contains(prompt, "Étape 2/3"):
		return "L'Article 113 fixe la durée du congé de maternité à trente jours.", nil
	}
	if synthesis != nil {
		return synthesis(ctx)
	}
	return "Selon l'Article 113, le congé de maternité est de trente jours.", nil
}

func (c *legalCompleter) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompts[len(c.prompts)-1]
}

func (c *legalCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

func article113() core.Passage {
	return core.Passage{
		ID:     "CT_TN_A113",
		Text:   "La femme en couches a droit à un congé de maternité de trente jours.",
		Score:  0.92,
		Path:   core.HierarchyPath{"Livre I", "Titre II", "Article 113"},
		Source: "Article 113",
	}
}

func newTestAssistant(t *testing.T, completer ai.Completer, searcher *staticSearcher) *Assistant {
	t.Helper()
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)

	reasoningConfig := reasoning.DefaultConfig()
	reasoningConfig.RetryBaseDelay = time.Millisecond

	a, err := New(Dependencies{
		Embedder:   mock.NewMockEmbedder(),
		Completer:  completer,
		Searcher:   searcher,
		Repository: repo,
	}, WithReasoningConfig(reasoningConfig), WithPoolSize(2))
	require.NoError(t, err)

	t.Cleanup(func() {
		a.Close()
		repo.Close()
		backend.Close()
	})
	return a
}

func TestNew_Validation(t *testing.T) {
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()
	defer repo.Close()

	deps := Dependencies{
		Embedder:   mock.NewMockEmbedder(),
		Completer:  mock.NewMockCompleter(),
		Searcher:   &staticSearcher{},
		Repository: repo,
	}

	missing := deps
	missing.Embedder = nil
	_, err = New(missing)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	missing = deps
	missing.Completer = nil
	_, err = New(missing)
	assert.ErrorIs(t, err, ErrCompleterRequired)

	missing = deps
	missing.Searcher = nil
	_, err = New(missing)
	assert.ErrorIs(t, err, ErrSearcherRequired)

	missing = deps
	missing.Repository = nil
	_, err = New(missing)
	assert.ErrorIs(t, err, ErrRepositoryRequired)
}

func TestAsk_MaternityLeave(t *testing.T) {
	completer := &legalCompleter{}
	a := newTestAssistant(t, completer, &staticSearcher{passages: []core.Passage{article113()}})

	resp, err := a.Ask(context.Background(), DefaultRequest("Combien de jours de congé de maternité ?", "u1"))
	require.NoError(t, err)

	require.Len(t, resp.Sources, 1)
	assert.Equal(t, 1, resp.NumSources)
	assert.Equal(t, "Article 113", resp.Sources[0].Label)
	assert.Equal(t, 1, resp.Sources[0].Rank)
	assert.Equal(t, "Livre I > Titre II > Article 113", resp.Sources[0].Hierarchy)
	assert.Contains(t, resp.Answer, "Article 113")
	assert.NotEmpty(t, resp.SessionID)
	assert.True(t, resp.MemoryUsed)
	assert.Nil(t, resp.ThinkingChain)
	assert.Contains(t, resp.OptimizedQueries, "Combien de jours de congé de maternité ?")
	assert.Equal(t, 3, completer.callCount())

	turns := a.Session("u1", resp.SessionID).Turns
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, "Combien de jours de congé de maternité ?", turns[0].Text)
	assert.Equal(t, core.RoleAssistant, turns[1].Role)
	assert.Equal(t, resp.Answer, turns[1].Text)
}

func TestAsk_FollowUpSeesPreviousExchange(t *testing.T) {
	completer := &legalCompleter{}
	a := newTestAssistant(t, completer, &staticSearcher{passages: []core.Passage{article113()}})

	first := DefaultRequest("Combien de jours de congé de maternité ?", "u1")
	first.SessionID = "s1"
	resp, err := a.Ask(context.Background(), first)
	require.NoError(t, err)

	followUp := DefaultRequest("Et si je suis enceinte?", "u1")
	followUp.SessionID = "s1"
	_, err = a.Ask(context.Background(), followUp)
	require.NoError(t, err)

	prompt := completer.lastPrompt()
	assert.Contains(t, prompt, "Combien de jours de congé de maternité ?")
	assert.Contains(t, prompt, resp.Answer)
	assert.Equal(t, 4, a.Session("u1", "s1").TurnCount)
}

func TestAsk_ThinkingChain(t *testing.T) {
	a := newTestAssistant(t, &legalCompleter{}, &staticSearcher{passages: []core.Passage{article113()}})

	req := DefaultRequest("Combien de jours de congé de maternité ?", "u1")
	req.ShowThinkingChain = true
	resp, err := a.Ask(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, resp.ThinkingChain)
	assert.Equal(t, req.Question, resp.ThinkingChain.OriginalQuery)
	assert.Contains(t, resp.ThinkingChain.LegalAnalysis, "Article 113")
	assert.Equal(t, resp.Answer, resp.ThinkingChain.FinalAnswer)
}

func TestAsk_FailureWritesNoMemory(t *testing.T) {
	completer := &legalCompleter{synthesis: func(ctx context.Context) (string, error) {
		return "", core.ErrLLMRejected
	}}
	a := newTestAssistant(t, completer, &staticSearcher{passages: []core.Passage{article113()}})

	req := DefaultRequest("Combien de jours de congé de maternité ?", "u1")
	req.SessionID = "s1"
	_, err := a.Ask(context.Background(), req)
	require.Error(t, err)

	var stageErr *core.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, core.StageSynthesizing, stageErr.Stage)
	assert.Zero(t, a.Session("u1", "s1").TurnCount)
	assert.Zero(t, a.Stats().ActiveSessions)
}

func TestAsk_CanceledWritesNoMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	completer := &legalCompleter{synthesis: func(context.Context) (string, error) {
		cancel()
		return "Réponse tardive.", nil
	}}
	a := newTestAssistant(t, completer, &staticSearcher{passages: []core.Passage{article113()}})

	req := DefaultRequest("Combien de jours de congé de maternité ?", "u1")
	req.SessionID = "s1"
	_, err := a.Ask(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, a.Session("u1", "s1").TurnCount)
}

func TestAsk_InvalidQuery(t *testing.T) {
	completer := &legalCompleter{}
	a := newTestAssistant(t, completer, &staticSearcher{})

	_, err := a.Ask(context.Background(), DefaultRequest("   ", "u1"))
	assert.ErrorIs(t, err, core.ErrInvalidQuery)

	_, err = a.Ask(context.Background(), DefaultRequest("Question ?", ""))
	assert.ErrorIs(t, err, core.ErrInvalidQuery)
	assert.Zero(t, completer.callCount())
}

func TestAsk_DirectMode(t *testing.T) {
	completer := &legalCompleter{}
	a := newTestAssistant(t, completer, &staticSearcher{passages: []core.Passage{article113()}})

	req := DefaultRequest("congé de maternité", "u1")
	req.EnableThinking = false
	req.EnableMemory = false
	resp, err := a.Ask(context.Background(), req)
	require.NoError(t, err)

	assert.Zero(t, completer.callCount())
	assert.True(t, strings.HasPrefix(resp.Answer, "Voici les articles pertinents trouvés:"))
	assert.Contains(t, resp.Answer, "Article 113: La femme en couches")
	assert.False(t, resp.MemoryUsed)
	assert.Zero(t, a.Stats().ActiveSessions)
}

func TestAsk_NoPassages(t *testing.T) {
	a := newTestAssistant(t, &legalCompleter{}, &staticSearcher{})

	req := DefaultRequest("congé de maternité", "u1")
	req.EnableThinking = false
	resp, err := a.Ask(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.Contains(t, resp.Answer, "aucune information pertinente")
}

func TestRequest_TopKClamp(t *testing.T) {
	tests := []struct {
		topK, want int
	}{
		{0, DefaultTopK},
		{-3, 1},
		{5, 5},
		{50, MaxTopK},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Request{TopK: tt.topK}.topK(), "topK %d", tt.topK)
	}
}

func TestNewSources_TruncatesText(t *testing.T) {
	long := strings.Repeat("é", sourceTextLimit+20)
	sources := newSources([]core.Passage{{ID: "a", Text: long, Path: core.HierarchyPath{"Article 1"}}})
	require.Len(t, sources, 1)
	assert.Equal(t, sourceTextLimit, len([]rune(sources[0].Text)))
	assert.Equal(t, "Article 1", sources[0].Label)
}

func TestSessionManagement(t *testing.T) {
	ctx := context.Background()
	a := newTestAssistant(t, &legalCompleter{}, &staticSearcher{passages: []core.Passage{article113()}})

	assert.ErrorIs(t, a.ClearSession("u1", "missing"), ErrSessionNotFound)
	_, err := a.SaveSession(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	req := DefaultRequest("Combien de jours de congé de maternité ?", "u1")
	req.SessionID = "s1"
	_, err = a.Ask(ctx, req)
	require.NoError(t, err)

	record, err := a.SaveSession(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Len(t, record.Turns, 2)

	history, err := a.History(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "s1", history[0].SessionID)

	require.NoError(t, a.ClearSession("u1", "s1"))
	assert.Zero(t, a.Session("u1", "s1").TurnCount)

	history, err = a.History(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "clearing short-term memory keeps saved sessions")

	n, err := a.ForgetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	history, err = a.History(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()
	a := newTestAssistant(t, &legalCompleter{}, &staticSearcher{passages: []core.Passage{article113()}})

	req := DefaultRequest("Combien de jours de congé de maternité ?", "u1")
	req.SessionID = "s1"
	_, err := a.Ask(ctx, req)
	require.NoError(t, err)

	require.NoError(t, a.EndSession(ctx, "u1", "s1", true))
	assert.Zero(t, a.Stats().ActiveSessions)

	history, err := a.History(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestReembedMemory(t *testing.T) {
	ctx := context.Background()
	a := newTestAssistant(t, &legalCompleter{}, &staticSearcher{passages: []core.Passage{article113()}})

	var progress bytes.Buffer
	n, err := a.ReembedMemory(ctx, nil, &progress)
	require.NoError(t, err)
	assert.Zero(t, n)

	req := DefaultRequest("Combien de jours de congé de maternité ?", "u1")
	req.SessionID = "s1"
	_, err = a.Ask(ctx, req)
	require.NoError(t, err)
	_, err = a.SaveSession(ctx, "u1", "s1")
	require.NoError(t, err)

	progress.Reset()
	n, err = a.ReembedMemory(ctx, nil, &progress)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, progress.String(), "Re-embedded: 1/1")

	history, err := a.History(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Len(t, history[0].Vector, 384)
}

func TestStats(t *testing.T) {
	a := newTestAssistant(t, &legalCompleter{}, &staticSearcher{passages: []core.Passage{article113()}})

	stats := a.Stats()
	assert.Equal(t, 3, stats.ReasoningStages)
	assert.Equal(t, chromem.DefaultCollection, stats.Collection)
	assert.True(t, stats.MemoryEnabled)
	assert.Zero(t, stats.TotalPassages, "static searcher cannot count")
}

func TestIngest_ReadOnlySearcher(t *testing.T) {
	a := newTestAssistant(t, &legalCompleter{}, &staticSearcher{})

	_, err := a.Ingest(context.Background(), []core.Passage{article113()})
	assert.ErrorIs(t, err, ErrIndexReadOnly)
}

func TestOpen_IngestAndAsk(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir, WithCollection("code_travail"))
	require.NoError(t, err)

	assert.Equal(t, "code_travail", a.Stats().Collection)
	assert.Equal(t, ai.DefaultConfig().CompletionModel, a.Stats().Model)
	assert.Zero(t, a.Stats().TotalPassages)
	require.NoError(t, a.Close())

	// Reopening the same directory succeeds once the first handle is closed
	a, err = Open(dir)
	require.NoError(t, err)
	require.NoError(t, a.Close())
}
