// Package app wires configuration, feeds, storage and summarisation into
// one selection run.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/deusflow/newsbrief/internal/brief"
	"github.com/deusflow/newsbrief/internal/collect"
	"github.com/deusflow/newsbrief/internal/config"
	"github.com/deusflow/newsbrief/internal/gemini"
	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/metrics"
	"github.com/deusflow/newsbrief/internal/planner"
	"github.com/deusflow/newsbrief/internal/ratelimit"
	"github.com/deusflow/newsbrief/internal/rss"
	"github.com/deusflow/newsbrief/internal/storage"
)

// geminiInterval paces summariser requests within a run.
const geminiInterval = 4 * time.Second

// OpenSeenStore returns the configured seen backend and its closer.
func OpenSeenStore(ctx context.Context, cfg *config.Config) (storage.SeenStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.SeenBackend {
	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
			return nil, noop, fmt.Errorf("create state dir: %w", err)
		}
		s, err := storage.OpenSQLSeenStore(ctx, storage.DialectSQLite, filepath.Join(cfg.StateDir, "seen.db"))
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.BackendPostgres:
		s, err := storage.OpenSQLSeenStore(ctx, storage.DialectPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return storage.NewFileSeenStore(cfg.StateDir), noop, nil
	}
}

func newSummarizer(ctx context.Context, cfg *config.Config) (brief.Summarizer, func()) {
	if cfg.GeminiAPIKey == "" {
		logger.Info("GEMINI_API_KEY not set, briefs use extractive summaries")
		return nil, func() {}
	}
	budget := ratelimit.NewBudget(cfg.MaxGeminiRequests, geminiInterval)
	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, budget)
	if err != nil {
		logger.Warn("gemini unavailable, briefs use extractive summaries", "error", err)
		return nil, func() {}
	}
	return client, client.Close
}

// Run performs one full selection run and writes the briefs to out. The
// returned error is non-nil only for persistence failures.
func Run(ctx context.Context, cfg *config.Config, monitor *metrics.Monitor, out io.Writer) error {
	store, closeStore, err := OpenSeenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open seen store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing seen store", "error", err)
		}
	}()

	agg := metrics.NewAggregator(time.Now)
	logger.Info("run started", "run_id", agg.RunID(), "categories", len(cfg.Categories), "backend", cfg.SeenBackend)

	fetcher := rss.NewCachingFetcher(rss.NewFeedFetcher(cfg.FetchTimeout))
	collector := collect.New(fetcher,
		collect.WithConcurrency(cfg.FetchConcurrency),
		collect.WithTimeout(cfg.FetchTimeout),
		collect.WithObserver(agg))
	cats := cfg.PlannerCategories()
	runner := NewRunner(cats, store, planner.New(collector, planner.WithObserver(agg)),
		agg, metrics.NewSnapshotWriter(cfg.MetricsDir), time.Now)

	output, runErr := runner.Run(ctx)
	if monitor != nil {
		monitor.Record(output.Summary)
	}
	logger.Debug("feeds fetched", "sources", fetcher.Sources())

	summarizer, closeSummarizer := newSummarizer(ctx, cfg)
	defer closeSummarizer()

	names := make(map[string]string, len(cfg.Categories))
	for _, c := range cfg.Categories {
		names[c.Key] = c.Name
	}
	builder := brief.NewBuilder(summarizer, names)
	for i, res := range output.Results {
		first := 0
		if ladder := cats[i].Ladder; len(ladder) > 0 {
			first = ladder[0].MaxAgeHours
		}
		fmt.Fprintln(out, brief.Format(builder.Build(ctx, res, first)))
	}
	return runErr
}
