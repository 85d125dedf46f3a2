package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/mentalmath/internal/cache"
	"github.com/abhisek/mentalmath/internal/catalog"
	"github.com/abhisek/mentalmath/internal/composer"
	"github.com/abhisek/mentalmath/internal/engine"
	"github.com/abhisek/mentalmath/internal/llm"
	"github.com/abhisek/mentalmath/internal/mastery"
	"github.com/abhisek/mentalmath/internal/selector"
	"github.com/abhisek/mentalmath/internal/session"
	"github.com/abhisek/mentalmath/internal/store"
)

// deps is the wired application graph.
type deps struct {
	store      *store.Store
	engine     *engine.Engine
	llmEnabled bool
	closers    []func() error
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

// buildDeps opens the store and wires the engine with the optional redis
// cache and text-generation provider.
func buildDeps(cmd *cobra.Command) (*deps, error) {
	ctx := cmd.Context()
	st, err := openStore(cmd)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	d := &deps{store: st, closers: []func() error{st.Close}}

	cat, err := loadCatalog(ctx, st)
	if err != nil {
		d.Close()
		return nil, err
	}

	estOpts := []mastery.Option{
		mastery.WithTimeout(cfg.AttemptLogTimeout),
		mastery.WithLogger(log),
	}
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("mastery cache disabled")
		} else {
			d.closers = append(d.closers, rdb.Close)
			estOpts = append(estOpts, mastery.WithCache(cache.NewMasteryCache(rdb, cfg.MasteryCacheTTL)))
		}
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, st, log)
	if err != nil {
		log.Warn().Err(err).Msg("LLM provider not configured, using fallback messages")
	}
	var gen composer.TextGenerator
	if provider != nil {
		gen = llm.NewTextGenerator(provider, cfg.LLM.System)
		d.llmEnabled = true
		log.Info().Str("provider", cfg.LLM.Provider).Str("model", provider.ModelID()).Msg("text generation enabled")
	}

	d.engine = engine.New(
		cat,
		session.NewTracker(st),
		selector.New(st,
			selector.WithLimit(cfg.CandidateLimit),
			selector.WithTimeout(cfg.CandidateTimeout),
			selector.WithLogger(log),
		),
		composer.New(gen,
			composer.WithTimeout(cfg.TextTimeout),
			composer.WithSummaryTimeout(cfg.SummaryTimeout),
			composer.WithMaxTokens(cfg.MaxTokens),
			composer.WithLogger(log),
		),
		engine.WithEstimator(mastery.NewEstimator(st, estOpts...)),
		engine.WithTraceWriter(traceWriter{st}),
		engine.WithDefaultBudget(cfg.DefaultBudget),
		engine.WithLogger(log),
	)
	return d, nil
}

// loadCatalog layers imported topics over the built-in catalog.
func loadCatalog(ctx context.Context, st *store.Store) (*catalog.Catalog, error) {
	topics, err := st.Topics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	return catalog.Default().Merge(topics...), nil
}

// traceWriter stores engine decision traces.
type traceWriter struct {
	st *store.Store
}

func (w traceWriter) WriteTrace(ctx context.Context, t engine.Trace) error {
	return w.st.AppendDecisionTrace(ctx, store.DecisionTrace{
		SessionID:      t.SessionID,
		PrevQuestionID: t.PrevQuestionID,
		NextQuestionID: t.NextQuestionID,
		NextDifficulty: t.NextDifficulty,
		Mastery:        t.Mastery,
		Reason:         t.Reason,
		Tier:           t.Tier,
		Message:        t.Message,
		Generated:      t.Generated,
		Timestamp:      t.Timestamp,
	})
}
