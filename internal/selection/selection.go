// Package selection picks a bounded, host-diverse subset of scored candidates.
package selection

import (
	"sort"

	"github.com/deusflow/newsbrief/internal/news"
)

// Excluder reports candidates already claimed elsewhere in the run.
type Excluder interface {
	ContainsAny(c news.Candidate) bool
}

// Select drops excluded (and, when requireOnTopic, off-topic) candidates,
// orders the rest by weight then recency, and takes them round-robin across
// source hosts until maxCount is reached or every host is exhausted.
func Select(cands []news.Candidate, exclusion Excluder, maxCount int, requireOnTopic bool) []news.Candidate {
	if maxCount <= 0 {
		return nil
	}

	pool := make([]news.Candidate, 0, len(cands))
	for _, c := range cands {
		if exclusion != nil && exclusion.ContainsAny(c) {
			continue
		}
		if requireOnTopic && !c.OnTopic {
			continue
		}
		pool = append(pool, c)
	}

	Sort(pool)
	return RoundRobin(pool, maxCount)
}

// Sort orders candidates by weight desc, published desc (undated last) and
// identity key so equal inputs always come out the same.
func Sort(cs []news.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		switch {
		case a.PublishedAt != nil && b.PublishedAt != nil:
			if !a.PublishedAt.Equal(*b.PublishedAt) {
				return a.PublishedAt.After(*b.PublishedAt)
			}
		case a.PublishedAt != nil:
			return true
		case b.PublishedAt != nil:
			return false
		}
		return a.IdentityKey() < b.IdentityKey()
	})
}

// RoundRobin takes one candidate per host per pass, visiting hosts in the
// order they first appear in cs.
func RoundRobin(cs []news.Candidate, maxCount int) []news.Candidate {
	var hosts []string
	groups := make(map[string][]news.Candidate)
	for _, c := range cs {
		if _, ok := groups[c.SourceHost]; !ok {
			hosts = append(hosts, c.SourceHost)
		}
		groups[c.SourceHost] = append(groups[c.SourceHost], c)
	}

	out := make([]news.Candidate, 0, min(maxCount, len(cs)))
	for len(out) < maxCount {
		took := false
		for _, h := range hosts {
			g := groups[h]
			if len(g) == 0 {
				continue
			}
			out = append(out, g[0])
			groups[h] = g[1:]
			took = true
			if len(out) == maxCount {
				break
			}
		}
		if !took {
			break
		}
	}
	return out
}
