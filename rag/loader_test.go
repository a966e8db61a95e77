package rag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDocumentsJSONL(t *testing.T) {
	input := `{"id":"doc1","content":"Paris is the capital of France.","embedding":[1,0]}

{"id":"doc2","content":"Berlin","embedding":[0,1],"metadata":{"lang":"en"}}
`
	docs, err := ReadDocumentsJSONL(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc1", docs[0].ID)
	assert.Equal(t, "en", docs[1].Metadata["lang"])
}

func TestReadDocumentsJSONL_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"invalid json", `{"id":`, "line 1"},
		{"missing id", `{"content":"x","embedding":[1]}`, "id is required"},
		{"missing embedding", `{"id":"a","content":"x"}`, "no embedding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDocumentsJSONL(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDocumentsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"a","content":"x","embedding":[1]}`+"\n"), 0o600))

	docs, err := LoadDocumentsJSONL(path)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, err = LoadDocumentsJSONL(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}
