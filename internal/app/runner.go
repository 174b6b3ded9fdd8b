package app

import (
	"context"
	"errors"
	"time"

	"github.com/deusflow/newsbrief/internal/dedup"
	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/metrics"
	"github.com/deusflow/newsbrief/internal/planner"
	"github.com/deusflow/newsbrief/internal/storage"
)

// SnapshotSink receives the run summary once the run is over.
type SnapshotSink interface {
	Write(metrics.Summary) error
}

// Runner processes categories strictly in order: each category's picks are
// recorded and claimed before the next one plans.
type Runner struct {
	categories []planner.Category
	store      storage.SeenStore
	planner    *planner.Planner
	metrics    *metrics.Aggregator
	snapshots  SnapshotSink
	now        func() time.Time
}

func NewRunner(categories []planner.Category, store storage.SeenStore, p *planner.Planner,
	agg *metrics.Aggregator, snapshots SnapshotSink, now func() time.Time) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{
		categories: categories,
		store:      store,
		planner:    p,
		metrics:    agg,
		snapshots:  snapshots,
		now:        now,
	}
}

// Output is everything a run produced.
type Output struct {
	Results []planner.Result
	Summary metrics.Summary
}

// Run plans every category. Category failures become placeholder results;
// only persistence failures are returned, joined, after all categories ran.
func (r *Runner) Run(ctx context.Context) (Output, error) {
	var (
		out       Output
		errs      []error
		exclusion dedup.ExclusionSet
	)

	for _, cat := range r.categories {
		log := logger.With("category", cat.Key)

		state, err := r.store.Load(ctx, cat.Key)
		if err != nil {
			// Planning without the seen state would republish old stories.
			log.Error("cannot load seen state, skipping category", "error", err)
			errs = append(errs, err)
			res := planner.Result{Category: cat.Key, TierIndex: -1, Placeholder: true, Err: err}
			r.metrics.CategoryCompleted(res)
			out.Results = append(out.Results, res)
			continue
		}

		res := r.planner.Plan(ctx, cat, state, exclusion)

		if len(res.Picked) > 0 {
			next, delta := state.Record(r.now(), res.Picked...)
			if !delta.Empty() {
				if err := r.store.Persist(ctx, cat.Key, next); err != nil {
					log.Error("cannot persist seen state", "error", err)
					errs = append(errs, err)
				}
			}
			exclusion = exclusion.Claim(res.Picked...)
		}

		r.metrics.CategoryCompleted(res)
		out.Results = append(out.Results, res)
	}

	out.Summary = r.metrics.Finish(errors.Join(errs...))
	if r.snapshots != nil {
		if err := r.snapshots.Write(out.Summary); err != nil {
			logger.Error("cannot write metrics snapshot", "error", err)
			errs = append(errs, err)
		}
	}

	logger.Info("run finished",
		"run_id", out.Summary.RunID,
		"tabs", out.Summary.TabsTotal,
		"picked", out.Summary.PickedItemsTotal,
		"no_update", out.Summary.NoUpdateTabs,
		"rss_errors", out.Summary.RSSErrors)
	return out, errors.Join(errs...)
}

// IsPersistenceError reports whether err carries a storage failure.
func IsPersistenceError(err error) bool {
	var perr *storage.PersistenceError
	return errors.As(err, &perr)
}
