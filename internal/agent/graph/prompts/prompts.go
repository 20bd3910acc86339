package prompts

import (
	"context"
	"embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/*.txt
var templates embed.FS

// Template names a system prompt under template/.
type Template string

const (
	Router        Template = "router_prompt.txt"
	SearchQuery   Template = "search_query_prompt.txt"
	SearchSummary Template = "search_summary_prompt.txt"
	SearchResults Template = "search_results_prompt.txt"
	Stockbroker   Template = "stockbroker_prompt.txt"
	OpenCode      Template = "open_code_prompt.txt"
	General       Template = "general_prompt.txt"
)

// AgentDescription is one entry of the capability list shown to the router and the
// general agent.
type AgentDescription struct {
	Label string
	Desc  string
}

// Render formats a template through the eino prompt component so prompt callbacks fire.
func Render(ctx context.Context, name Template, vars map[string]any) (string, error) {
	raw, err := templates.ReadFile("template/" + string(name))
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", name, err)
	}
	tpl := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(string(raw)))
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("render prompt %s: empty result", name)
	}
	return msgs[0].Content, nil
}
