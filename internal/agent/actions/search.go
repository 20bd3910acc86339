package actions

import (
	"context"
	"strings"

	"github.com/chative-genui/server/internal/agent/model"
	logx "github.com/chative-genui/server/pkg/logger"
	"github.com/chative-genui/server/pkg/tavily"
)

// SearchFailedReason is shown to the user when the search provider fails.
const SearchFailedReason = "Search failed. Please try again."

// Searcher is the search capability.
type Searcher interface {
	Search(ctx context.Context, in tavily.Request) ([]tavily.Result, error)
}

// SearchArgs are the validated arguments of a search.
type SearchArgs struct {
	Query         string `json:"query"`
	IncludeImages *bool  `json:"includeImages,omitempty"`
	SearchDepth   string `json:"searchDepth,omitempty"`
	MaxResults    int    `json:"maxResults,omitempty"`
}

// SearchExecutor runs web searches. It never retries.
type SearchExecutor struct {
	searcher   Searcher
	maxResults int
}

func NewSearchExecutor(searcher Searcher, maxResults int) *SearchExecutor {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &SearchExecutor{searcher: searcher, maxResults: maxResults}
}

// Execute invokes the search capability once.
func (e *SearchExecutor) Execute(ctx context.Context, args SearchArgs) Result[[]model.SearchHit] {
	req := tavily.Request{
		Query:         strings.TrimSpace(args.Query),
		SearchDepth:   tavily.DepthBasic,
		IncludeImages: true,
		MaxResults:    e.maxResults,
	}
	if args.IncludeImages != nil {
		req.IncludeImages = *args.IncludeImages
	}
	if args.SearchDepth == string(tavily.DepthAdvanced) {
		req.SearchDepth = tavily.DepthAdvanced
	}
	if args.MaxResults > 0 && args.MaxResults < req.MaxResults {
		req.MaxResults = args.MaxResults
	}

	results, err := e.searcher.Search(ctx, req)
	if err != nil {
		logx.Error().Err(err).Str("query", req.Query).Msg("Search provider failed")
		return Fail[[]model.SearchHit](SearchFailedReason)
	}
	if results == nil {
		results = []model.SearchHit{}
	}
	return Succeed(results)
}
