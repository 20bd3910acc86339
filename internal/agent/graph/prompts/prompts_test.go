package prompts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRouter(t *testing.T) {
	out, err := Render(context.Background(), Router, map[string]any{
		"RouteTool": "route",
		"Fallback":  "general",
		"Agents": []AgentDescription{
			{Label: "search", Desc: "searches the web"},
			{Label: "stockbroker", Desc: "fetches prices"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "- search: searches the web")
	assert.Contains(t, out, "- stockbroker: fetches prices")
	assert.Contains(t, out, `choose "general"`)
}

func TestRenderSearchResults(t *testing.T) {
	out, err := Render(context.Background(), SearchResults, map[string]any{"Query": "mars rover", "Results": "[]"})
	require.NoError(t, err)
	assert.Contains(t, out, `Here are the search results for "mars rover":`)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render(context.Background(), Template("missing.txt"), nil)
	assert.Error(t, err)
}
