package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/lexrag/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder_RequiresEmbedder(t *testing.T) {
	_, err := NewEmbedder(nil, 10)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestEmbedder_CachesSingleText(t *testing.T) {
	inner := mock.NewMockEmbedder()
	e, err := NewEmbedder(inner, 100)
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	first, err := e.EmbedText(ctx, "article 113")
	require.NoError(t, err)
	second, err := e.EmbedText(ctx, "article 113")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.CallCount())
}

func TestEmbedder_BatchEmbedsOnlyMisses(t *testing.T) {
	inner := mock.NewMockEmbedder()
	e, err := NewEmbedder(inner, 100)
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	_, err = e.EmbedText(ctx, "a")
	require.NoError(t, err)
	inner.Reset()

	vecs, err := e.EmbedTexts(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []string{"b", "c"}, inner.Texts())
	assert.Equal(t, mock.DeterministicVector("b", 384), vecs[1])
}

func TestEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := mock.NewMockEmbedder()
	boom := errors.New("boom")
	inner.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}
	e, err := NewEmbedder(inner, 100)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.EmbedText(context.Background(), "a")
	assert.ErrorIs(t, err, boom)

	inner.EmbedTextFunc = nil
	vec, err := e.EmbedText(context.Background(), "a")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)
}
