// Package planner walks a category's escalation ladder until a selection is
// good enough, falling back to the best attempt or a placeholder.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/relevance"
	"github.com/deusflow/newsbrief/internal/seen"
	"github.com/deusflow/newsbrief/internal/selection"
)

const (
	DefaultMaxItems              = 6
	DefaultMinItems              = 3
	DefaultRequiredDistinctHosts = 3
)

// ErrCategoryExhausted marks a category for which no tier produced anything.
var ErrCategoryExhausted = errors.New("category exhausted")

// Category is everything the planner needs to know about one tab.
type Category struct {
	Key       string
	Primary   []string
	Secondary []string
	Ladder    []Tier
	Scorer    relevance.Scorer

	MaxItems              int
	MinItems              int
	RequiredDistinctHosts int
}

func (c Category) ladder() []Tier {
	if len(c.Ladder) > 0 {
		return c.Ladder
	}
	return BuildLadder(nil, len(c.Secondary) > 0)
}

func (c Category) sources(t Tier) []string {
	if !t.UsesSecondary {
		return c.Primary
	}
	out := make([]string, 0, len(c.Primary)+len(c.Secondary))
	out = append(out, c.Primary...)
	return append(out, c.Secondary...)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// MeetsQuality is the minimum-quality predicate: at least minItems picks
// spread over at least min(requiredHosts, len(picked)) hosts.
func MeetsQuality(picked []news.Candidate, minItems, requiredHosts int) bool {
	if len(picked) < minItems {
		return false
	}
	return news.DistinctHosts(picked) >= min(requiredHosts, len(picked))
}

// Collector is the subset of collect.Collector the planner drives.
type Collector interface {
	Collect(ctx context.Context, sources []string, maxAge time.Duration, state seen.State) []news.Candidate
}

// Observer hears about every tier the planner attempts.
type Observer interface {
	TierAttempted(category string, index int, tier Tier)
}

type nopObserver struct{}

func (nopObserver) TierAttempted(string, int, Tier) {}

// Result is the outcome of planning one category.
type Result struct {
	Category         string
	Picked           []news.Candidate
	Tier             Tier
	TierIndex        int
	UsedSecondary    bool
	RelevanceRelaxed bool
	// Succeeded is false only for the placeholder of an exhausted ladder.
	Succeeded   bool
	Placeholder bool
	// Thin marks a best-effort result that never met the quality predicate.
	Thin bool
	// DuplicatesDropped counts candidates of the committed tier already
	// claimed by an earlier category.
	DuplicatesDropped int
	Err               error
}

// DistinctHosts is the number of source hosts among the picks.
func (r Result) DistinctHosts() int {
	return news.DistinctHosts(r.Picked)
}

type Planner struct {
	collector Collector
	observer  Observer
}

type Option func(*Planner)

func WithObserver(o Observer) Option {
	return func(p *Planner) {
		if o != nil {
			p.observer = o
		}
	}
}

func New(c Collector, opts ...Option) *Planner {
	p := &Planner{collector: c, observer: nopObserver{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan escalates through cat's ladder. The first tier meeting the quality
// predicate wins; otherwise the tier with the most picks (earliest on ties)
// is used, and an all-empty ladder yields a placeholder result.
func (p *Planner) Plan(ctx context.Context, cat Category, state seen.State, exclusion selection.Excluder) Result {
	log := logger.With("category", cat.Key)
	scorer := cat.Scorer
	if scorer == nil {
		scorer = relevance.NeutralScorer{}
	}
	maxItems := orDefault(cat.MaxItems, DefaultMaxItems)
	minItems := orDefault(cat.MinItems, DefaultMinItems)
	hosts := orDefault(cat.RequiredDistinctHosts, DefaultRequiredDistinctHosts)

	ladder := cat.ladder()
	var best *Result
	for i, tier := range ladder {
		if i > 0 && ctx.Err() != nil {
			log.Warn("planning interrupted", "tier", tier.String(), "error", ctx.Err())
			break
		}
		p.observer.TierAttempted(cat.Key, i, tier)

		cands := p.collector.Collect(ctx, cat.sources(tier), tier.MaxAge(), state)
		scored := relevance.Apply(scorer, cands)

		res := Result{
			Category:          cat.Key,
			Tier:              tier,
			TierIndex:         i,
			UsedSecondary:     tier.UsesSecondary,
			DuplicatesDropped: countExcluded(scored, exclusion),
		}
		res.Picked = selection.Select(scored, exclusion, maxItems, true)
		if !MeetsQuality(res.Picked, minItems, hosts) {
			if loose := selection.Select(scored, exclusion, maxItems, false); len(loose) > len(res.Picked) {
				res.Picked = loose
				res.RelevanceRelaxed = true
			}
		}

		log.Debug("tier attempted",
			"tier", tier.String(),
			"candidates", len(cands),
			"picked", len(res.Picked),
			"hosts", res.DistinctHosts(),
			"relaxed", res.RelevanceRelaxed)

		if MeetsQuality(res.Picked, minItems, hosts) {
			res.Succeeded = true
			log.Info("category selected", "tier", tier.String(), "picked", len(res.Picked))
			return res
		}
		if best == nil || len(res.Picked) > len(best.Picked) {
			r := res
			best = &r
		}
	}

	if best == nil || len(best.Picked) == 0 {
		last := Tier{}
		if len(ladder) > 0 {
			last = ladder[len(ladder)-1]
		}
		log.Warn("no tier produced any items, using placeholder", "tiers", len(ladder))
		return Result{
			Category:      cat.Key,
			Tier:          last,
			TierIndex:     len(ladder) - 1,
			UsedSecondary: last.UsesSecondary,
			Placeholder:   true,
			Err:           fmt.Errorf("%w: %s", ErrCategoryExhausted, cat.Key),
		}
	}

	best.Succeeded = true
	best.Thin = true
	log.Info("category thin, using best effort",
		"tier", best.Tier.String(), "picked", len(best.Picked), "hosts", best.DistinctHosts())
	return *best
}

func countExcluded(cs []news.Candidate, exclusion selection.Excluder) int {
	if exclusion == nil {
		return 0
	}
	n := 0
	for _, c := range cs {
		if exclusion.ContainsAny(c) {
			n++
		}
	}
	return n
}
