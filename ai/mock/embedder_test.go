package mock

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/poiesic/medimatch/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "ibuprofen")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "ibuprofen")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "aspirin")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, DefaultDimension)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_EmptyText(t *testing.T) {
	m := NewMockEmbedder()
	_, err := m.EmbedText(context.Background(), " ")
	assert.ErrorIs(t, err, ai.ErrEmptyText)
}

func TestMockEmbedder_CustomFunc(t *testing.T) {
	m := NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 2, 3}, nil
	})

	v, err := m.EmbedText(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)

	vs, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}, {1, 2, 3}}, vs)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	assert.Empty(t, m.Texts())
}

func TestMockEmbedder_ConcurrentCalls(t *testing.T) {
	m := NewMockEmbedder()
	m.Dimension = 8

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EmbedText(context.Background(), "pain relief")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, m.CallCount())
	assert.Len(t, m.Texts(), 50)
}

func TestMockProvider(t *testing.T) {
	provider := NewMockProvider()
	assert.Equal(t, DefaultModel, provider.Model())
	assert.NotNil(t, provider.Embedder())
	require.NoError(t, provider.Close())

	custom := NewMockProviderWithEmbedder(NewMockEmbedder(), "all-minilm")
	assert.Equal(t, "all-minilm", custom.Model())
	assert.False(t, custom.Closed())
	require.NoError(t, custom.Close())
	assert.True(t, custom.Closed())
}
