package chatengine

import (
	"testing"

	"github.com/BaSui01/chatflow/rag"
	"github.com/BaSui01/chatflow/types"
	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate("Q: {query_str} / {unknown} / {query_str}", map[string]string{"query_str": "why"})
	assert.Equal(t, "Q: why / {unknown} / why", out)
	assert.Equal(t, "", renderTemplate("", map[string]string{"a": "b"}))
	assert.Equal(t, "{a}", renderTemplate("{a}", nil))
}

func TestParsePlacement(t *testing.T) {
	for in, want := range map[string]ContextPlacement{
		"":       PlacementSystem,
		"system": PlacementSystem,
		"inline": PlacementInline,
		"none":   PlacementNone,
	} {
		got, ok := ParsePlacement(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParsePlacement("prefix")
	assert.False(t, ok)
}

func TestAssemblePrompt(t *testing.T) {
	nodes := rag.RetrievedContext{
		{SourceID: "a", Text: "alpha", Score: 0.9},
		{SourceID: "b", Text: "beta", Score: 0.5},
	}
	history := []types.Message{
		{Role: types.RoleUser, Content: "earlier"},
		{Role: types.RoleAssistant, Content: "reply"},
	}
	base := promptSpec{
		contextTemplate: "CTX[{context_str}]",
		qaTemplate:      "QA[{context_str}|{query_str}]",
		history:         history,
		message:         "now",
	}

	tests := []struct {
		name   string
		mutate func(p *promptSpec)
		want   []types.Message
	}{
		{
			name:   "no context",
			mutate: func(p *promptSpec) { p.placement = PlacementNone; p.nodes = nodes },
			want: []types.Message{
				{Role: types.RoleUser, Content: "earlier"},
				{Role: types.RoleAssistant, Content: "reply"},
				{Role: types.RoleUser, Content: "now"},
			},
		},
		{
			name:   "system placement",
			mutate: func(p *promptSpec) { p.placement = PlacementSystem; p.nodes = nodes },
			want: []types.Message{
				{Role: types.RoleSystem, Content: "CTX[alpha\n\nbeta]"},
				{Role: types.RoleUser, Content: "earlier"},
				{Role: types.RoleAssistant, Content: "reply"},
				{Role: types.RoleUser, Content: "now"},
			},
		},
		{
			name: "system prompt joined with context",
			mutate: func(p *promptSpec) {
				p.placement = PlacementSystem
				p.nodes = nodes[:1]
				p.systemPrompt = "Be brief.\n"
			},
			want: []types.Message{
				{Role: types.RoleSystem, Content: "Be brief.\nCTX[alpha]"},
				{Role: types.RoleUser, Content: "earlier"},
				{Role: types.RoleAssistant, Content: "reply"},
				{Role: types.RoleUser, Content: "now"},
			},
		},
		{
			name:   "inline placement",
			mutate: func(p *promptSpec) { p.placement = PlacementInline; p.nodes = nodes },
			want: []types.Message{
				{Role: types.RoleUser, Content: "earlier"},
				{Role: types.RoleAssistant, Content: "reply"},
				{Role: types.RoleUser, Content: "QA[alpha\n\nbeta|now]"},
			},
		},
		{
			name:   "empty retrieval omits block",
			mutate: func(p *promptSpec) { p.placement = PlacementSystem; p.nodes = rag.RetrievedContext{} },
			want: []types.Message{
				{Role: types.RoleUser, Content: "earlier"},
				{Role: types.RoleAssistant, Content: "reply"},
				{Role: types.RoleUser, Content: "now"},
			},
		},
		{
			name:   "empty inline retrieval keeps raw message",
			mutate: func(p *promptSpec) { p.placement = PlacementInline; p.systemPrompt = "sys" },
			want: []types.Message{
				{Role: types.RoleSystem, Content: "sys"},
				{Role: types.RoleUser, Content: "earlier"},
				{Role: types.RoleAssistant, Content: "reply"},
				{Role: types.RoleUser, Content: "now"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			got := assemblePrompt(p)
			assert.Len(t, got, len(tt.want))
			for i := range tt.want {
				if i >= len(got) {
					break
				}
				assert.Equal(t, tt.want[i].Role, got[i].Role, "message %d", i)
				assert.Equal(t, tt.want[i].Content, got[i].Content, "message %d", i)
			}
		})
	}
}

func TestAssemblePrompt_DoesNotAliasHistory(t *testing.T) {
	history := make([]types.Message, 1, 4)
	history[0] = types.NewUserMessage("earlier")

	got := assemblePrompt(promptSpec{history: history, message: "now", placement: PlacementNone})
	got[0].Content = "mutated"
	assert.Equal(t, "earlier", history[0].Content)
}
