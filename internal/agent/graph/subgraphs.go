package graph

import (
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/chative-genui/server/internal/agent/graph/nodes"
)

// buildSearchGraph: prepare → execute → format, ending early when there is nothing to do.
func buildSearchGraph(d *nodes.Deps) (*compose.Graph[state, state], error) {
	prepare, err := nodes.NewSearchPrepareNode(d)
	if err != nil {
		return nil, err
	}
	g := compose.NewGraph[state, state]()
	return g, firstErr(
		g.AddLambdaNode(nodes.NodeSearchPrepare, compose.InvokableLambda(prepare)),
		g.AddLambdaNode(nodes.NodeSearchExecute, compose.InvokableLambda(nodes.NewSearchExecuteNode(d))),
		g.AddLambdaNode(nodes.NodeSearchFormat, compose.InvokableLambda(nodes.NewSearchFormatNode(d))),
		g.AddEdge(compose.START, nodes.NodeSearchPrepare),
		g.AddBranch(nodes.NodeSearchPrepare, compose.NewGraphBranch(nodes.SearchFound, map[string]bool{
			nodes.NodeSearchExecute: true,
			compose.END:             true,
		})),
		g.AddBranch(nodes.NodeSearchExecute, compose.NewGraphBranch(nodes.SearchHasResults, map[string]bool{
			nodes.NodeSearchFormat: true,
			compose.END:            true,
		})),
		g.AddEdge(nodes.NodeSearchFormat, compose.END),
	)
}

// buildStockbrokerGraph: prepare → act, or confirm when a buy decision arrived.
func buildStockbrokerGraph(d *nodes.Deps) (*compose.Graph[state, state], error) {
	prepare, err := nodes.NewStockPrepareNode(d)
	if err != nil {
		return nil, err
	}
	g := compose.NewGraph[state, state]()
	return g, firstErr(
		g.AddLambdaNode(nodes.NodeStockPrepare, compose.InvokableLambda(prepare)),
		g.AddLambdaNode(nodes.NodeStockAct, compose.InvokableLambda(nodes.NewStockActNode(d))),
		g.AddLambdaNode(nodes.NodeStockConfirm, compose.InvokableLambda(nodes.NewStockConfirmNode(d))),
		g.AddBranch(compose.START, compose.NewGraphBranch(nodes.StockEntry, map[string]bool{
			nodes.NodeStockPrepare: true,
			nodes.NodeStockConfirm: true,
		})),
		g.AddBranch(nodes.NodeStockPrepare, compose.NewGraphBranch(nodes.StockHasCalls, map[string]bool{
			nodes.NodeStockAct: true,
			compose.END:        true,
		})),
		g.AddEdge(nodes.NodeStockAct, compose.END),
		g.AddEdge(nodes.NodeStockConfirm, compose.END),
	)
}

// buildOpenCodeGraph: propose, or review when a change decision arrived.
func buildOpenCodeGraph(d *nodes.Deps) (*compose.Graph[state, state], error) {
	propose, err := nodes.NewCodeProposeNode(d)
	if err != nil {
		return nil, err
	}
	g := compose.NewGraph[state, state]()
	return g, firstErr(
		g.AddLambdaNode(nodes.NodeCodePropose, compose.InvokableLambda(propose)),
		g.AddLambdaNode(nodes.NodeCodeReview, compose.InvokableLambda(nodes.NewCodeReviewNode())),
		g.AddBranch(compose.START, compose.NewGraphBranch(nodes.CodeEntry, map[string]bool{
			nodes.NodeCodePropose: true,
			nodes.NodeCodeReview:  true,
		})),
		g.AddEdge(nodes.NodeCodePropose, compose.END),
		g.AddEdge(nodes.NodeCodeReview, compose.END),
	)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("build subgraph: %w", err)
		}
	}
	return nil
}
