package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/chative-genui/server/internal/agent/actions"
	"github.com/chative-genui/server/internal/agent/graph/parsers"
	"github.com/chative-genui/server/internal/agent/graph/prompts"
	"github.com/chative-genui/server/internal/agent/graph/tools"
	"github.com/chative-genui/server/internal/agent/model"
	"github.com/chative-genui/server/internal/agent/ui"
	logx "github.com/chative-genui/server/pkg/logger"
)

const (
	NodeSearchPrepare = "search_prepare"
	NodeSearchExecute = "search_execute"
	NodeSearchFormat  = "search_format"

	ComponentSearch        = "search"
	ComponentSearchResults = "search-results"
)

// NewSearchPrepareNode extracts one optimized query and shows a loading card for it.
func NewSearchPrepareNode(d *Deps) (NodeFunc, error) {
	reg := tools.NewRegistry(tools.SearchQueryTool())
	cm, err := d.Models.Agent.WithTools(reg)
	if err != nil {
		return nil, err
	}
	ext, err := parsers.NewExtractor(reg)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, s *model.ConversationState) (*model.ConversationState, error) {
		log := logx.Node(s.ConversationID, NodeSearchPrepare)
		sys, err := prompts.Render(ctx, prompts.SearchQuery, map[string]any{"Tool": tools.ToolExtractSearchQuery})
		if err != nil {
			return nil, err
		}
		msg, cost, err := stream(ctx, cm, NodeSearchPrepare, s, d.Messages.BuildContext(sys, s.Messages))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().Err(err).Msg("Search query extraction failed")
			return s.Apply(model.Update{Messages: []*schema.Message{model.NewAIMessage(actions.SearchFailedReason)}}), nil
		}

		var (
			query string
			call  model.ToolCall
		)
		for _, c := range ext.Extract(msg) {
			var args tools.SearchQueryInput
			if err := c.DecodeArgs(&args); err == nil && args.Query != "" {
				query, call = args.Query, c
				break
			}
		}
		if query == "" {
			log.Info().Msg("No search intent extracted")
			if hasContent(msg) {
				return s.Apply(model.Update{Messages: []*schema.Message{keepCalls(msg, nil)}, CostUSD: cost}), nil
			}
			return s.Apply(model.Update{CostUSD: cost}), nil
		}

		msg = keepCalls(msg, []model.ToolCall{call})
		id := uuid.NewString()
		ui.FromContext(ctx).Push(ui.Event{
			ID:        id,
			Name:      ComponentSearch,
			Props:     ui.Props{"query": query, "isSearching": true},
			MessageID: model.MessageID(msg),
			Merge:     ui.Merge,
			Status:    ui.StatusLoading,
		})
		log.Debug().Str("correlation_id", id).Str("query", query).Msg("Search prepared")

		return s.Apply(model.Update{
			Messages: []*schema.Message{msg, toolResult(call, map[string]any{"success": true, "query": query})},
			Search:   &model.SearchScratch{Query: query, UIID: id},
			CostUSD:  cost,
		}), nil
	}, nil
}

// NewSearchExecuteNode runs the search and replaces the loading card with results or
// an error.
func NewSearchExecuteNode(d *Deps) NodeFunc {
	return func(ctx context.Context, s *model.ConversationState) (*model.ConversationState, error) {
		if s.Search == nil || s.Search.Query == "" || s.Search.UIID == "" {
			return s, nil
		}
		q := *s.Search
		res := d.Search.Execute(ctx, actions.SearchArgs{Query: q.Query})
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !res.OK() {
			human := model.NewHumanMessage(fmt.Sprintf("Search failed for \"%s\"", q.Query))
			ui.FromContext(ctx).Push(ui.Event{
				ID:   q.UIID,
				Name: ComponentSearchResults,
				Props: ui.Props{
					"results":     []model.SearchHit{},
					"query":       q.Query,
					"error":       res.Reason,
					"isSearching": false,
				},
				MessageID: model.MessageID(human),
				Merge:     ui.Replace,
				Status:    ui.StatusError,
			})
			q.Failed = true
			return s.Apply(model.Update{Messages: []*schema.Message{human}, Search: &q}), nil
		}

		human := model.NewHumanMessage(fmt.Sprintf("Here are the search results for \"%s\"", q.Query))
		ui.FromContext(ctx).Push(ui.Event{
			ID:   q.UIID,
			Name: ComponentSearchResults,
			Props: ui.Props{
				"results":     res.Value,
				"query":       q.Query,
				"isSearching": false,
			},
			MessageID: model.MessageID(human),
			Merge:     ui.Replace,
			Status:    ui.StatusSuccess,
		})
		q.Results = res.Value
		return s.Apply(model.Update{Messages: []*schema.Message{human}, Search: &q}), nil
	}
}

// NewSearchFormatNode streams a sourced summary of the results.
func NewSearchFormatNode(d *Deps) NodeFunc {
	return func(ctx context.Context, s *model.ConversationState) (*model.ConversationState, error) {
		if s.Search == nil || len(s.Search.Results) == 0 {
			return s, nil
		}
		log := logx.Node(s.ConversationID, NodeSearchFormat)

		results, err := json.Marshal(s.Search.Results)
		if err != nil {
			return nil, fmt.Errorf("encode search results: %w", err)
		}
		sys, err := prompts.Render(ctx, prompts.SearchSummary, nil)
		if err != nil {
			return nil, err
		}
		ask, err := prompts.Render(ctx, prompts.SearchResults, map[string]any{"Query": s.Search.Query, "Results": string(results)})
		if err != nil {
			return nil, err
		}

		msg, cost, err := stream(ctx, d.Models.Summary, NodeSearchFormat, s,
			d.Messages.BuildContext(sys, s.Messages, schema.UserMessage(ask)))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().Err(err).Msg("Search summary failed")
			return s, nil
		}
		if msg != nil {
			msg.ToolCalls = nil
		}
		if !hasContent(msg) {
			return s.Apply(model.Update{CostUSD: cost}), nil
		}
		return s.Apply(model.Update{Messages: []*schema.Message{msg}, CostUSD: cost}), nil
	}
}

// SearchFound continues to execution only when prepare extracted a query.
func SearchFound(_ context.Context, s *model.ConversationState) (string, error) {
	if s.Search == nil || s.Search.Query == "" {
		return compose.END, nil
	}
	return NodeSearchExecute, nil
}

// SearchHasResults continues to the summary only when results came back.
func SearchHasResults(_ context.Context, s *model.ConversationState) (string, error) {
	if s.Search == nil || len(s.Search.Results) == 0 {
		return compose.END, nil
	}
	return NodeSearchFormat, nil
}
