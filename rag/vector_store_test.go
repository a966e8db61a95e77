package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func TestInMemoryVectorStore_AddAndSearch(t *testing.T) {
	store := NewInMemoryVectorStore(zap.NewNop())
	ctx := context.Background()

	docs := []Document{
		{ID: "doc1", Content: "Paris is the capital of France.", Embedding: []float64{1, 0, 0}},
		{ID: "doc2", Content: "Berlin is the capital of Germany.", Embedding: []float64{0, 1, 0}},
		{ID: "doc3", Content: "Lyon is a city in France.", Embedding: []float64{0.7, 0.3, 0}},
	}
	require.NoError(t, store.AddDocuments(ctx, docs))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := store.Search(ctx, []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc1", results[0].Document.ID)
	assert.Equal(t, "doc3", results[1].Document.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-9)
}

func TestInMemoryVectorStore_RejectsMissingEmbedding(t *testing.T) {
	store := NewInMemoryVectorStore(nil)
	err := store.AddDocuments(context.Background(), []Document{{ID: "x", Content: "no vector"}})
	require.Error(t, err)

	count, _ := store.Count(context.Background())
	assert.Equal(t, 0, count, "a rejected batch must not be partially added")
}

func TestInMemoryVectorStore_UpsertAndDelete(t *testing.T) {
	store := NewInMemoryVectorStore(nil)
	ctx := context.Background()

	require.NoError(t, store.AddDocuments(ctx, []Document{{ID: "a", Content: "v1", Embedding: []float64{1}}}))
	require.NoError(t, store.AddDocuments(ctx, []Document{{ID: "a", Content: "v2", Embedding: []float64{1}}}))

	results, err := store.Search(ctx, []float64{1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v2", results[0].Document.Content)

	require.NoError(t, store.DeleteDocuments(ctx, []string{"a"}))
	count, _ := store.Count(ctx)
	assert.Equal(t, 0, count)
}

func TestInMemoryVectorStore_SearchOrderingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := NewInMemoryVectorStore(nil)
		ctx := context.Background()

		n := rapid.IntRange(0, 20).Draw(rt, "docs")
		docs := make([]Document, n)
		for i := range docs {
			docs[i] = Document{
				ID: rapid.StringMatching(`[a-z]{1,6}`).Draw(rt, "id") + string(rune('A'+i)),
				Embedding: []float64{
					rapid.Float64Range(-1, 1).Draw(rt, "x"),
					rapid.Float64Range(-1, 1).Draw(rt, "y"),
				},
			}
		}
		if err := store.AddDocuments(ctx, docs); err != nil {
			rt.Fatalf("add: %v", err)
		}

		topK := rapid.IntRange(1, 25).Draw(rt, "topK")
		results, err := store.Search(ctx, []float64{1, 0.5}, topK)
		if err != nil {
			rt.Fatalf("search: %v", err)
		}
		if len(results) > topK {
			rt.Fatalf("got %d results for topK %d", len(results), topK)
		}
		for i := 1; i < len(results); i++ {
			if results[i].Score > results[i-1].Score {
				rt.Fatalf("results not sorted at %d", i)
			}
		}
	})
}
