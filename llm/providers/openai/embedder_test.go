package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/BaSui01/chatflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedder_Embed(t *testing.T) {
	var got map[string]any
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		// 故意乱序返回，结果应按 index 归位
		writeJSON(w, http.StatusOK, map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
			},
			"usage": map[string]any{"prompt_tokens": 4, "total_tokens": 4},
		})
	})

	e := NewEmbedder(cfg, nil)
	vecs, err := e.Embed(context.Background(), []string{"paris", "berlin"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, "text-embedding-3-small", got["model"])
	assert.Equal(t, []any{"paris", "berlin"}, got["input"])
}

func TestEmbedder_EmptyInput(t *testing.T) {
	e := NewEmbedder(Config{APIKey: "k", BaseURL: "http://127.0.0.1:0/v1"}, nil)
	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedder_CountMismatch(t *testing.T) {
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"object": "list",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": []float32{1}}},
		})
	})
	cfg.EmbeddingModel = "custom-embed"

	_, err := NewEmbedder(cfg, nil).Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "got 1 vectors for 2 inputs")
}

func TestEmbedder_ErrorMapping(t *testing.T) {
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": map[string]any{"message": "bad key", "type": "auth"},
		})
	})

	_, err := NewEmbedder(cfg, nil).Embed(context.Background(), []string{"a"})
	assert.True(t, types.IsErrorCode(err, types.ErrUnauthorized))
}
