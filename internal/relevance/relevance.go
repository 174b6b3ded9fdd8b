// Package relevance judges how well a candidate fits its category, using
// only the title, snippet and source metadata a feed supplies.
package relevance

import (
	"regexp"
	"sort"
	"strings"

	"github.com/deusflow/newsbrief/internal/news"
)

// Scorer rates text for one category. Implementations must be pure:
// the same text always yields the same result.
type Scorer interface {
	Score(text string) (weight float64, onTopic bool)
}

// NeutralScorer accepts everything with zero weight, leaving order to recency.
type NeutralScorer struct{}

func (NeutralScorer) Score(string) (float64, bool) { return 0, true }

// Text is the string a Scorer sees for a candidate.
func Text(c news.Candidate) string {
	return strings.Join([]string{c.SourceHost, c.Title, c.Snippet}, " ")
}

// Apply scores cs with s and returns scored copies.
func Apply(s Scorer, cs []news.Candidate) []news.Candidate {
	out := make([]news.Candidate, len(cs))
	for i, c := range cs {
		c.Weight, c.OnTopic = s.Score(Text(c))
		out[i] = c
	}
	return out
}

// Rules configure a KeywordScorer.
type Rules struct {
	// Core terms decide onTopic; each hit also adds CoreWeight.
	Core       []string
	CoreWeight float64
	// Boost terms add their weight when present.
	Boost map[string]float64
	// Exclude terms zero the weight and force onTopic=false.
	Exclude []string
}

// DefaultCoreWeight applies when Rules.CoreWeight is unset.
const DefaultCoreWeight = 10

type weightedTerm struct {
	term   string
	weight float64
}

// KeywordScorer is a rule-table Scorer built on keyword matching.
type KeywordScorer struct {
	core       []string
	coreWeight float64
	boost      []weightedTerm
	exclude    []string
	words      map[string]*regexp.Regexp
}

var _ Scorer = (*KeywordScorer)(nil)

// NewKeywordScorer compiles rules. Terms are lowercased; short tokens get
// word-boundary matching so "ai" does not match "said".
func NewKeywordScorer(r Rules) *KeywordScorer {
	s := &KeywordScorer{
		core:       normalizeTerms(r.Core),
		coreWeight: r.CoreWeight,
		exclude:    normalizeTerms(r.Exclude),
		words:      make(map[string]*regexp.Regexp),
	}
	if s.coreWeight == 0 {
		s.coreWeight = DefaultCoreWeight
	}

	for term, w := range r.Boost {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		s.boost = append(s.boost, weightedTerm{term: term, weight: w})
	}
	// Map iteration order must not leak into float sums.
	sort.Slice(s.boost, func(i, j int) bool { return s.boost[i].term < s.boost[j].term })

	all := append(append([]string{}, s.core...), s.exclude...)
	for _, b := range s.boost {
		all = append(all, b.term)
	}
	for _, term := range all {
		if needsWordMatch(term) {
			s.words[term] = regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)
		}
	}
	return s
}

func (s *KeywordScorer) Score(text string) (float64, bool) {
	text = strings.ToLower(text)

	for _, k := range s.exclude {
		if s.contains(text, k) {
			return 0, false
		}
	}

	weight := 0.0
	hits := 0
	for _, k := range s.core {
		if s.contains(text, k) {
			hits++
			weight += s.coreWeight
		}
	}
	for _, b := range s.boost {
		if s.contains(text, b.term) {
			weight += b.weight
		}
	}
	if weight < 0 {
		weight = 0
	}
	return weight, hits > 0
}

// contains distinguishes phrases, short tokens and longer words.
func (s *KeywordScorer) contains(text, k string) bool {
	if re, ok := s.words[k]; ok {
		return re.MatchString(text)
	}
	return strings.Contains(text, k)
}

func needsWordMatch(term string) bool {
	return !strings.Contains(term, " ") && len(term) <= 3
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, k := range terms {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
