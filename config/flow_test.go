package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlow_TopLevelKey(t *testing.T) {
	steps, err := ParseFlow([]byte(`
flow:
  - capability: condense
  - capability: retrieve
    input: condensed_query
    inject: system
    top_k: 3
  - capability: synthesize
`))
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "retrieve", steps[1].Capability)
	assert.Equal(t, 3, steps[1].TopK)
}

func TestParseFlow_BareSequence(t *testing.T) {
	steps, err := ParseFlow([]byte(`
- capability: custom
  name: lang
  handler: detect_language
  inputs: [message]
  outputs: [language]
- capability: synthesize
`))
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, []string{"language"}, steps[0].Outputs)
	assert.Equal(t, "detect_language", steps[0].Handler)
}

func TestParseFlow_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "flow: []", "no steps"},
		{"unknown capability", "- capability: rerank", "unknown capability"},
		{"missing capability", "- name: x", "capability is required"},
		{"bad inject", "- capability: retrieve\n  inject: footer", "unknown inject mode"},
		{"bad input", "- capability: retrieve\n  input: response", "retrieve input"},
		{"custom without handler", "- capability: custom", "requires a handler"},
		{"custom bad inject", "- capability: custom\n  handler: kb\n  inject: footer", "unknown inject mode"},
		{"invalid yaml", "- capability: [", "parse flow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFlow([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFlowFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- capability: synthesize\n"), 0644))

	steps, err := LoadFlowFile(path)
	require.NoError(t, err)
	assert.Len(t, steps, 1)

	_, err = LoadFlowFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
