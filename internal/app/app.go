// Package app wires the service once at startup. Every optional backend is
// skipped when its connection setting is empty.
package app

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/retention-intel/server/internal/agent/chat"
	"github.com/retention-intel/server/internal/agent/graph"
	"github.com/retention-intel/server/internal/agent/graph/conversations"
	"github.com/retention-intel/server/internal/agent/graph/nodes"
	"github.com/retention-intel/server/internal/agent/model"
	"github.com/retention-intel/server/internal/agent/stages"
	"github.com/retention-intel/server/internal/evaluation"
	"github.com/retention-intel/server/internal/guardrail"
	"github.com/retention-intel/server/internal/refdata"
	"github.com/retention-intel/server/internal/repo"
	"github.com/retention-intel/server/internal/retrieval"
	"github.com/retention-intel/server/internal/server"
	logx "github.com/retention-intel/server/pkg/logger"
)

// App holds the wired service.
type App struct {
	Config  Config
	Dataset *refdata.Dataset
	Chat    *chat.Service
	Server  *server.Server
	Scoring *evaluation.Loader

	// Store and Batch are nil without a database.
	Store *repo.PostgresStore
	Batch *evaluation.Batch

	closers []func() error
}

// New builds the application from cfg.
func New(ctx context.Context, cfg Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Dataset, err = refdata.Load(cfg.Pipeline.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}

	policy, err := guardrail.LoadPolicy(cfg.Guardrail.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load guardrail policy: %w", err)
	}

	var (
		responseModel einomodel.BaseChatModel
		guardModel    einomodel.BaseChatModel
		searcher      stages.Searcher
		guardOpts     []guardrail.Option
		responseName  string
	)
	if cfg.Gemini.APIKey != "" {
		cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
			Gemini:      cfg.Gemini,
			RespConfig:  &cfg.Response,
			GuardConfig: &cfg.Guard,
		})
		if err != nil {
			return nil, err
		}
		responseModel, guardModel, responseName = cms.Response, cms.Guard, cms.ResponseModelName

		embedder := retrieval.NewGenAIEmbedder(cms.Client, cfg.Embedding.Model, cfg.Embedding.TaskType)
		searcher = retrieval.NewIndex(retrieval.BuildCorpus(a.Dataset.Offers, a.Dataset.Knowledge), embedder)

		if cfg.Guardrail.LLMEnabled {
			guardOpts = append(guardOpts, guardrail.WithClassifier(
				guardrail.NewModelClassifier(cms.Guard, cms.GuardModelName, cfg.Pipeline.GuardTimeout)))
		}
	} else {
		logx.Warn().Msg("GEMINI_API_KEY not set: responses use the fallback text, retrieval and model guard are off")
	}

	runner, err := graph.BuildRetentionGraph(ctx, &graph.GraphConfig{
		Data:     a.Dataset,
		Searcher: searcher,
		Generator: stages.NewGenerator(responseModel,
			stages.WithModelTimeout(cfg.Pipeline.GenerationTimeout),
			stages.WithModelName(responseName),
		),
		TopK: cfg.Pipeline.SemanticTopK,
	})
	if err != nil {
		return nil, err
	}

	sinks, transcripts, err := a.openBackends(ctx)
	if err != nil {
		return nil, err
	}
	recorder := conversations.NewRecorder(repo.NewFanoutSink(sinks...), transcripts)
	a.Chat = chat.NewService(guardrail.NewEngine(policy, guardOpts...), runner, recorder)

	a.Scoring = evaluation.NewLoader(cfg.Evaluation.ScoringDir)
	opts := []server.Option{
		server.WithSLA(server.SLA{
			Compliance:   cfg.Evaluation.SLACompliance,
			Completeness: cfg.Evaluation.SLACompleteness,
		}),
		server.WithScoringCatalog(a.Scoring),
	}
	if a.Store != nil {
		fns, err := a.Scoring.LoadAll(evaluation.DefaultScoringRefs...)
		if err != nil {
			return nil, fmt.Errorf("load scoring functions: %w", err)
		}
		var scorer evaluation.Scorer
		if guardModel != nil {
			scorer = evaluation.NewJudge(guardModel, cfg.Pipeline.GuardTimeout)
		}
		a.Batch = evaluation.NewBatch(a.Store, scorer, fns, cfg.Evaluation.BatchWindow)
		opts = append(opts, server.WithEvalReader(a.Store))
	}
	a.Server = server.NewServer(a.Chat, opts...)

	logx.Info().
		Str("environment", cfg.Env().String()).
		Int("customers", len(a.Dataset.Customers)).
		Int("sinks", len(sinks)).
		Bool("evaluation", a.Batch != nil).
		Msg("application wired")
	return a, nil
}

// openBackends dials the configured stores and returns the event sinks and
// the transcript reader.
func (a *App) openBackends(ctx context.Context) ([]model.EventSink, model.ConversationRepository, error) {
	cfg := a.Config
	var (
		sinks       []model.EventSink
		transcripts model.ConversationRepository
	)
	if !cfg.Env().UsesExternalBackends() {
		return sinks, transcripts, nil
	}

	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		redisRepo := repo.NewRedisConversationRepository(rdb, cfg.Conversation.TTLDuration())
		sinks = append(sinks, redisRepo)
		transcripts = redisRepo
	}

	if cfg.Postgres.Enabled() {
		pool, err := cfg.Postgres.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		store := repo.NewPostgresStore(pool)
		if err := store.Init(ctx); err != nil {
			return nil, nil, err
		}
		a.Store = store
		sinks = append(sinks, store)
	}

	if cfg.Kafka.Enabled() {
		sink := repo.NewKafkaEventSink(cfg.Kafka.NewWriter())
		a.closers = append(a.closers, sink.Close)
		sinks = append(sinks, sink)
	}
	return sinks, transcripts, nil
}

// RunEvaluation runs one evaluation batch.
func (a *App) RunEvaluation(ctx context.Context) (model.EvalMetric, error) {
	if a.Batch == nil {
		return model.EvalMetric{}, errors.New("evaluation needs DATABASE_URL")
	}
	return a.Batch.Run(ctx)
}

// NewScheduler schedules the evaluation batch; nil when evaluation is off.
func (a *App) NewScheduler() (*evaluation.Scheduler, error) {
	if a.Batch == nil {
		return nil, nil
	}
	return evaluation.NewScheduler(a.Config.Evaluation.Schedule, evaluation.RunnerFunc(func(ctx context.Context) error {
		_, err := a.Batch.Run(ctx)
		return err
	}), a.Config.Evaluation.BatchWindow)
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
