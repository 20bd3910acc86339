package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/chative-genui/server/internal/agent/graph/nodes"
	"github.com/chative-genui/server/internal/agent/graph/observers"
	"github.com/chative-genui/server/internal/agent/model"
	"github.com/chative-genui/server/internal/agent/ui"
	errx "github.com/chative-genui/server/internal/core/error"
	logx "github.com/chative-genui/server/pkg/logger"
)

type state = *model.ConversationState

// SinkFactory returns the live UI sink of a conversation. It may return nil.
type SinkFactory func(conversationID string) ui.Sink

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Deps  *nodes.Deps
	Sinks SinkFactory
	// MaxRunSteps bounds the supervisor run. Defaults to 20.
	MaxRunSteps int
}

// GraphBuilder handles the construction of the supervisor graph and its agent subgraphs
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[state, state]
}

// Agent runs one invocation of the compiled graph over an in-memory state. It performs
// no persistence.
type Agent struct {
	runnable compose.Runnable[state, state]
	sinks    SinkFactory
}

// BuildAgent constructs and compiles the supervisor graph
func BuildAgent(ctx context.Context, config *GraphConfig) (*Agent, error) {
	if config == nil || config.Deps == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	d := config.Deps
	if d.Models == nil || d.Messages == nil || d.Search == nil || d.Market == nil || d.Portfolio == nil {
		return nil, fmt.Errorf("graph dependencies are not properly initialized")
	}

	b := &GraphBuilder{config: config, graph: compose.NewGraph[state, state]()}
	if err := b.addNodes(); err != nil {
		return nil, err
	}
	if err := b.addEdges(); err != nil {
		return nil, err
	}
	runnable, err := b.compile(ctx)
	if err != nil {
		return nil, err
	}
	return &Agent{runnable: runnable, sinks: config.Sinks}, nil
}

// addNodes adds the router, the agent subgraphs and the general reply
func (b *GraphBuilder) addNodes() error {
	d := b.config.Deps

	router, err := nodes.NewRouterNode(d)
	if err != nil {
		return fmt.Errorf("router node: %w", err)
	}
	search, err := buildSearchGraph(d)
	if err != nil {
		return fmt.Errorf("search subgraph: %w", err)
	}
	stock, err := buildStockbrokerGraph(d)
	if err != nil {
		return fmt.Errorf("stockbroker subgraph: %w", err)
	}
	code, err := buildOpenCodeGraph(d)
	if err != nil {
		return fmt.Errorf("open code subgraph: %w", err)
	}

	steps := []error{
		b.graph.AddLambdaNode(nodes.NodeRouter, compose.InvokableLambda(router)),
		b.graph.AddGraphNode(nodes.RouteSearch, search, compose.WithNodeName(nodes.RouteSearch)),
		b.graph.AddGraphNode(nodes.RouteStockbroker, stock, compose.WithNodeName(nodes.RouteStockbroker)),
		b.graph.AddGraphNode(nodes.RouteOpenCode, code, compose.WithNodeName(nodes.RouteOpenCode)),
		b.graph.AddLambdaNode(nodes.RouteGeneral, compose.InvokableLambda(nodes.NewGeneralNode(d))),
	}
	for _, err := range steps {
		if err != nil {
			logx.Error().Err(err).Msg("Error adding node")
			return fmt.Errorf("error adding node: %w", err)
		}
	}
	return nil
}

// addEdges wires START → router → one agent → END
func (b *GraphBuilder) addEdges() error {
	if err := b.graph.AddEdge(compose.START, nodes.NodeRouter); err != nil {
		return err
	}
	routes := map[string]bool{}
	for _, label := range nodes.RouteLabels() {
		routes[label] = true
		if err := b.graph.AddEdge(label, compose.END); err != nil {
			return err
		}
	}
	if err := b.graph.AddBranch(nodes.NodeRouter, compose.NewGraphBranch(nodes.RouteCondition, routes)); err != nil {
		logx.Error().Err(err).Msg("Error adding route branch")
		return fmt.Errorf("error adding route branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[state, state], error) {
	maxSteps := b.config.MaxRunSteps
	if maxSteps <= 0 {
		maxSteps = 20
	}
	runnable, err := b.graph.Compile(ctx,
		compose.WithMaxRunSteps(maxSteps),
		compose.WithGraphName("supervisor"),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// Run executes one invocation. Elevated permission from cfg is stored on the session;
// UI events pushed during the run are appended to the returned state's log.
func (a *Agent) Run(ctx context.Context, in *model.ConversationState, cfg model.InvokeConfig) (*model.ConversationState, error) {
	if in == nil {
		return nil, errx.Validation(fmt.Errorf("conversation state is nil"))
	}
	s := in.Clone()
	if cfg.FullWriteAccess && !s.Permissions.FullWriteAccess {
		s = s.Apply(model.Update{Permissions: &model.Permissions{FullWriteAccess: true}})
	}

	var sink ui.Sink
	if a.sinks != nil {
		sink = a.sinks(s.ConversationID)
	}
	ch := ui.NewChannel(ctx, s.UI, sink)
	ctx = ui.NewContext(ctx, ch)

	out, err := a.runnable.Invoke(ctx, s, compose.WithCallbacks(observers.NewAllCallbacks()...))
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = s
	}
	out = out.ResetScratch()
	out.UI = ch.Events()
	return out, nil
}
