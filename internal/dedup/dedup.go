// Package dedup keeps a story in at most one category per run.
package dedup

import "github.com/deusflow/newsbrief/internal/news"

// ExclusionSet is the run-wide set of identity keys claimed by categories
// that have already committed. It is immutable; Claim returns a new set.
type ExclusionSet struct {
	keys map[string]struct{}
}

// Contains reports whether key has been claimed.
func (s ExclusionSet) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// ContainsAny reports whether any identity of c has been claimed.
func (s ExclusionSet) ContainsAny(c news.Candidate) bool {
	for _, k := range c.Keys() {
		if s.Contains(k) {
			return true
		}
	}
	return false
}

// Claim returns a set that also holds the link and title identities of cs.
func (s ExclusionSet) Claim(cs ...news.Candidate) ExclusionSet {
	next := ExclusionSet{keys: make(map[string]struct{}, len(s.keys)+2*len(cs))}
	for k := range s.keys {
		next.keys[k] = struct{}{}
	}
	for _, c := range cs {
		for _, k := range c.Keys() {
			next.keys[k] = struct{}{}
		}
	}
	return next
}

func (s ExclusionSet) Len() int { return len(s.keys) }
