// Package metrics tallies what a run selected and how hard it had to try.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/planner"
)

// SourceCount is how many picks of a tab came from one host.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// TabSummary describes one category's committed result.
type TabSummary struct {
	Key            string        `json:"key"`
	ItemCount      int           `json:"itemCount"`
	Thin           bool          `json:"thin"`
	NoUpdate       bool          `json:"noUpdate"`
	UsedSecondary  bool          `json:"usedSecondary"`
	RelaxedOnTopic bool          `json:"relaxedOnTopic"`
	DistinctHosts  int           `json:"distinctHosts"`
	FreshnessUsed  int           `json:"freshnessUsed"`
	TierIndex      int           `json:"tierIndex"`
	Sources        []SourceCount `json:"sources"`
}

// Summary is the immutable record of one run.
type Summary struct {
	RunID            string       `json:"runId"`
	StartedAt        time.Time    `json:"startedAt"`
	FinishedAt       time.Time    `json:"finishedAt"`
	RunSuccess       bool         `json:"runSuccess"`
	RunError         string       `json:"runError,omitempty"`
	TabsTotal        int          `json:"tabsTotal"`
	PickedItemsTotal int          `json:"pickedItemsTotal"`
	ThinTabs         int          `json:"thinTabs"`
	NoUpdateTabs     int          `json:"noUpdateTabs"`
	FallbackTabs     int          `json:"fallbackTabs"`
	TierEscalations  int          `json:"tierEscalations"`
	RSSErrors        int          `json:"rssErrors"`
	DupCount         int          `json:"dupCount"`
	HostCount        int          `json:"hostCount"`
	StrictCount      int          `json:"strictCount"`
	OffTopicCount    int          `json:"offTopicCount"`
	Tabs             []TabSummary `json:"tabs"`
}

// Aggregator observes a run. It only counts; nothing it records feeds back
// into selection. Safe for concurrent use.
type Aggregator struct {
	mu sync.Mutex

	runID     string
	startedAt time.Time
	now       func() time.Time

	failedSources   map[string]struct{}
	tierEscalations int
	dupCount        int
	hosts           map[string]struct{}
	tabs            []TabSummary
	picked          int
	strict          int
	offTopic        int

	summary *Summary
}

// NewAggregator starts a run with a fresh run ID.
func NewAggregator(now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		runID:         uuid.NewString(),
		startedAt:     now().UTC(),
		now:           now,
		failedSources: make(map[string]struct{}),
		hosts:         make(map[string]struct{}),
	}
}

func (a *Aggregator) RunID() string { return a.runID }

// SourceFailed counts distinct failing sources; repeats across tiers and
// categories are counted once.
func (a *Aggregator) SourceFailed(source string, _ error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failedSources[source] = struct{}{}
}

// TierAttempted counts every rung climbed past a category's first tier.
func (a *Aggregator) TierAttempted(_ string, index int, _ planner.Tier) {
	if index == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tierEscalations++
}

// CategoryCompleted folds one committed category result into the run totals.
func (a *Aggregator) CategoryCompleted(res planner.Result) {
	tab := TabSummary{
		Key:            res.Category,
		ItemCount:      len(res.Picked),
		Thin:           res.Thin,
		NoUpdate:       res.Placeholder,
		UsedSecondary:  res.UsedSecondary,
		RelaxedOnTopic: res.RelevanceRelaxed,
		DistinctHosts:  res.DistinctHosts(),
		FreshnessUsed:  res.Tier.MaxAgeHours,
		TierIndex:      res.TierIndex,
	}

	for host, n := range news.HostCounts(res.Picked) {
		tab.Sources = append(tab.Sources, SourceCount{Source: host, Count: n})
	}
	sort.Slice(tab.Sources, func(i, j int) bool {
		if tab.Sources[i].Count != tab.Sources[j].Count {
			return tab.Sources[i].Count > tab.Sources[j].Count
		}
		return tab.Sources[i].Source < tab.Sources[j].Source
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tabs = append(a.tabs, tab)
	a.dupCount += res.DuplicatesDropped
	a.picked += len(res.Picked)
	for _, c := range res.Picked {
		a.hosts[c.SourceHost] = struct{}{}
		if c.OnTopic {
			a.strict++
		} else {
			a.offTopic++
		}
	}
}

// Finish freezes the run. Later calls return the same summary.
func (a *Aggregator) Finish(runErr error) Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.summary != nil {
		return *a.summary
	}

	s := Summary{
		RunID:            a.runID,
		StartedAt:        a.startedAt,
		FinishedAt:       a.now().UTC(),
		RunSuccess:       runErr == nil,
		TabsTotal:        len(a.tabs),
		PickedItemsTotal: a.picked,
		TierEscalations:  a.tierEscalations,
		RSSErrors:        len(a.failedSources),
		DupCount:         a.dupCount,
		HostCount:        len(a.hosts),
		StrictCount:      a.strict,
		OffTopicCount:    a.offTopic,
		Tabs:             append([]TabSummary(nil), a.tabs...),
	}
	if runErr != nil {
		s.RunError = runErr.Error()
	}
	for _, t := range a.tabs {
		if t.Thin {
			s.ThinTabs++
		}
		if t.NoUpdate {
			s.NoUpdateTabs++
		}
		if !t.NoUpdate && (t.TierIndex > 0 || t.RelaxedOnTopic) {
			s.FallbackTabs++
		}
	}
	a.summary = &s
	return s
}
