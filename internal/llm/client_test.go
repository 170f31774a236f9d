package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoscholar/backend/pkg/utils"
)

type fakeEmbeddingCache struct {
	store    map[string][]float32
	gets     int
	sets     int
	getErr   error
	lastTTL  time.Duration
	lastHash string
}

func newFakeEmbeddingCache() *fakeEmbeddingCache {
	return &fakeEmbeddingCache{store: map[string][]float32{}}
}

func (f *fakeEmbeddingCache) GetEmbedding(_ context.Context, textHash string) ([]float32, bool, error) {
	f.gets++
	f.lastHash = textHash
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.store[textHash]
	return v, ok, nil
}

func (f *fakeEmbeddingCache) SetEmbedding(_ context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	f.sets++
	f.lastTTL = ttl
	f.store[textHash] = embedding
	return nil
}

func TestGenerateEmbeddingServedFromCache(t *testing.T) {
	text := "sparse attention for long sequences"
	cache := newFakeEmbeddingCache()
	cache.store[utils.HashString(text)] = []float32{0.1, 0.2, 0.3}

	// No API key and no reachable backend: a hit must return before any
	// network call is attempted.
	client := NewClient("", "gpt-4", "text-embedding-3-small", 0.3, 1024)
	client.SetEmbeddingCache(cache)

	embedding, err := client.GenerateEmbedding(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embedding)
	assert.Equal(t, 1, cache.gets)
	assert.Equal(t, 0, cache.sets)
	assert.Equal(t, utils.HashString(text), cache.lastHash)
}

func TestGenerateEmbeddingCacheMissKeyed(t *testing.T) {
	cache := newFakeEmbeddingCache()
	cache.store[utils.HashString("some other text")] = []float32{9}

	client := NewClient("", "gpt-4", "text-embedding-3-small", 0.3, 1024)
	client.SetEmbeddingCache(cache)

	// The miss falls through to the backend, which is unreachable here; the
	// point is that a different text never returns the cached vector.
	embedding, err := client.GenerateEmbedding(context.Background(), "brand new text")
	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Equal(t, 1, cache.gets)
}

func TestGenerateEmbeddingCacheLookupFailureIsNonFatal(t *testing.T) {
	cache := newFakeEmbeddingCache()
	cache.getErr = errors.New("redis down")

	client := NewClient("", "gpt-4", "text-embedding-3-small", 0.3, 1024)
	client.SetEmbeddingCache(cache)

	// A broken cache degrades to the backend path instead of failing the call.
	_, err := client.GenerateEmbedding(context.Background(), "anything")
	assert.Error(t, err)
	assert.Equal(t, 1, cache.gets)
	assert.Equal(t, 0, cache.sets)
}
