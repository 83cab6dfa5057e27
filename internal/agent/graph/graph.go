package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/retention-intel/server/internal/agent/graph/nodes"
	"github.com/retention-intel/server/internal/agent/graph/observers"
	"github.com/retention-intel/server/internal/agent/model"
	"github.com/retention-intel/server/internal/agent/stages"
	"github.com/retention-intel/server/internal/refdata"
	logx "github.com/retention-intel/server/pkg/logger"
)

// maxRunSteps covers the four linear stages with headroom.
const maxRunSteps = 10

// Runner executes the compiled retention pipeline for one turn.
type Runner interface {
	Run(ctx context.Context, in *model.PipelineState) (*model.PipelineState, error)
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Data      *refdata.Dataset
	Searcher  stages.Searcher
	Generator *stages.Generator
	TopK      int
}

// GraphBuilder handles the construction of the retention pipeline graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[*model.PipelineState, *model.PipelineState]
}

type graphRunner struct {
	runnable compose.Runnable[*model.PipelineState, *model.PipelineState]
}

func (r *graphRunner) Run(ctx context.Context, in *model.PipelineState) (*model.PipelineState, error) {
	if in == nil {
		return nil, fmt.Errorf("pipeline state is nil")
	}
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()...))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BuildRetentionGraph validates the config, compiles the pipeline and returns a Runner.
func BuildRetentionGraph(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("Retention graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled pipeline graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[*model.PipelineState, *model.PipelineState], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Data == nil {
		return nil, fmt.Errorf("reference dataset is nil")
	}
	if config.Generator == nil {
		return nil, fmt.Errorf("generator is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[*model.PipelineState, *model.PipelineState](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnTrace {
				return &model.TurnTrace{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds the four pipeline stages to the graph
func (b *GraphBuilder) addNodes() error {
	steps := []struct {
		key  string
		node *compose.Lambda
		opts []compose.GraphAddNodeOpt
	}{
		{
			key:  nodes.NodeAttrition,
			node: nodes.NewAttritionNode(b.config.Data),
			opts: []compose.GraphAddNodeOpt{
				compose.WithStatePreHandler(nodes.NewTurnPreHandler()),
				compose.WithStatePostHandler(nodes.NewStagePostHandler(nodes.NodeAttrition)),
			},
		},
		{
			key:  nodes.NodeSegmentation,
			node: nodes.NewSegmentationNode(),
			opts: []compose.GraphAddNodeOpt{
				compose.WithStatePostHandler(nodes.NewStagePostHandler(nodes.NodeSegmentation)),
			},
		},
		{
			key:  nodes.NodeEvidence,
			node: nodes.NewEvidenceNode(b.config.Data, b.config.Searcher, b.config.TopK),
			opts: []compose.GraphAddNodeOpt{
				compose.WithStatePostHandler(nodes.NewStagePostHandler(nodes.NodeEvidence)),
			},
		},
		{
			key:  nodes.NodeGeneration,
			node: nodes.NewGenerationNode(b.config.Generator),
			opts: []compose.GraphAddNodeOpt{
				compose.WithStatePostHandler(nodes.NewGenerationPostHandler()),
			},
		},
	}

	for _, s := range steps {
		opts := append(s.opts, compose.WithNodeName(s.key))
		if err := b.graph.AddLambdaNode(s.key, s.node, opts...); err != nil {
			logx.Error().Err(err).Str("node", s.key).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", s.key, err)
		}
	}
	return nil
}

// addEdges wires the stages in a straight line
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeAttrition},
		{nodes.NodeAttrition, nodes.NodeSegmentation},
		{nodes.NodeSegmentation, nodes.NodeEvidence},
		{nodes.NodeEvidence, nodes.NodeGeneration},
		{nodes.NodeGeneration, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s->%s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.PipelineState, *model.PipelineState], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("retention_pipeline"),
		compose.WithMaxRunSteps(maxRunSteps),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
