package mock

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/poiesic/lexrag/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "congé de maternité")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "congé de maternité")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "licenciement")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 384)
	assert.Equal(t, 3, m.CallCount())

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
}

func TestMockEmbedder_InjectedFailure(t *testing.T) {
	m := NewMockEmbedder()
	boom := errors.New("boom")
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}

	_, err := m.EmbedTexts(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, m.Texts())

	m.Reset()
	assert.Zero(t, m.CallCount())
	_, err = m.EmbedText(context.Background(), "a")
	assert.NoError(t, err)
}

func TestMockCompleter_Script(t *testing.T) {
	m := NewMockCompleter("first", "second")
	ctx := context.Background()

	got := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		out, err := m.Complete(ctx, "prompt", ai.CompletionOptions{Temperature: float64(i) / 10})
		require.NoError(t, err)
		got = append(got, out)
	}

	assert.Equal(t, []string{"first", "second", "second"}, got)
	calls := m.Calls()
	require.Len(t, calls, 3)
	assert.InDelta(t, 0.2, calls[2].Options.Temperature, 1e-9)
}

func TestMockCompleter_Concurrent(t *testing.T) {
	m := NewMockCompleter("x")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Complete(context.Background(), "p", ai.CompletionOptions{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.CallCount())
}

func TestMockCompleter_CanceledContext(t *testing.T) {
	m := NewMockCompleter("x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Complete(ctx, "p", ai.CompletionOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProviderWithServices(NewMockEmbedder(), NewMockCompleter("ok"))

	out, err := p.Completer().Complete(context.Background(), "p", ai.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())

	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
}
