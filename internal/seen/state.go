// Package seen tracks which stories a category has already published.
//
// A State is an immutable snapshot: recording candidates returns a new
// State together with the Delta that was added, so a category run can be
// reasoned about (and tested) without shared mutable sets.
package seen

import (
	"sort"
	"time"

	"github.com/deusflow/newsbrief/internal/news"
)

// State is the persisted per-category record of previously selected items.
// Links hold normalised link identities (host + path), titles hold
// normalised titles, both without the identity-key prefix.
type State struct {
	links   map[string]struct{}
	titles  map[string]struct{}
	updated time.Time
}

// Delta lists identities newly added by Record.
type Delta struct {
	Links  []string
	Titles []string
}

// Empty reports whether the delta adds nothing.
func (d Delta) Empty() bool {
	return len(d.Links) == 0 && len(d.Titles) == 0
}

// New builds a State from stored identities.
func New(links, titles []string, updated time.Time) State {
	s := State{
		links:   make(map[string]struct{}, len(links)),
		titles:  make(map[string]struct{}, len(titles)),
		updated: updated,
	}
	for _, l := range links {
		if l != "" {
			s.links[l] = struct{}{}
		}
	}
	for _, t := range titles {
		if t = news.NormalizeTitle(t); t != "" {
			s.titles[t] = struct{}{}
		}
	}
	return s
}

// Contains reports whether the candidate's link identity or normalised title
// has been recorded before.
func (s State) Contains(c news.Candidate) bool {
	if l, ok := news.NormalizeLink(c.Link); ok {
		if _, hit := s.links[l]; hit {
			return true
		}
	}
	if t := news.NormalizeTitle(c.Title); t != "" {
		if _, hit := s.titles[t]; hit {
			return true
		}
	}
	return false
}

// Record returns a new State that also contains cs. Already-known
// identities are skipped, so recording the same items twice is a no-op.
func (s State) Record(now time.Time, cs ...news.Candidate) (State, Delta) {
	var delta Delta
	next := State{
		links:   make(map[string]struct{}, len(s.links)+len(cs)),
		titles:  make(map[string]struct{}, len(s.titles)+len(cs)),
		updated: s.updated,
	}
	for l := range s.links {
		next.links[l] = struct{}{}
	}
	for t := range s.titles {
		next.titles[t] = struct{}{}
	}

	for _, c := range cs {
		if l, ok := news.NormalizeLink(c.Link); ok {
			if _, dup := next.links[l]; !dup {
				next.links[l] = struct{}{}
				delta.Links = append(delta.Links, l)
			}
		}
		if t := news.NormalizeTitle(c.Title); t != "" {
			if _, dup := next.titles[t]; !dup {
				next.titles[t] = struct{}{}
				delta.Titles = append(delta.Titles, t)
			}
		}
	}

	if !delta.Empty() {
		next.updated = now
	}
	return next, delta
}

// Links returns the recorded link identities in sorted order.
func (s State) Links() []string {
	return sortedKeys(s.links)
}

// Titles returns the recorded normalised titles in sorted order.
func (s State) Titles() []string {
	return sortedKeys(s.titles)
}

// Updated is the time of the last change, zero for a fresh state.
func (s State) Updated() time.Time {
	return s.updated
}

// Len is the number of recorded identities of both kinds.
func (s State) Len() int {
	return len(s.links) + len(s.titles)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
