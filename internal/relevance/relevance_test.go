package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deusflow/newsbrief/internal/news"
)

func aiScorer() *KeywordScorer {
	return NewKeywordScorer(Rules{
		Core:    []string{"AI", "machine learning", "llm"},
		Boost:   map[string]float64{"regulation": 5, "open source": 3, "gpu": 2},
		Exclude: []string{"horoscope"},
	})
}

func TestKeywordScorerShortTokensNeedWordBoundary(t *testing.T) {
	s := aiScorer()

	w, on := s.Score("The minister said the budget passed")
	assert.False(t, on, `"said" must not match "ai"`)
	assert.Zero(t, w)

	w, on = s.Score("New AI rules announced")
	assert.True(t, on)
	assert.Equal(t, float64(DefaultCoreWeight), w)
}

func TestKeywordScorerWeights(t *testing.T) {
	s := aiScorer()

	w, on := s.Score("EU regulation targets LLM and machine learning vendors")
	assert.True(t, on)
	assert.Equal(t, 2*float64(DefaultCoreWeight)+5, w)

	w, on = s.Score("Open source GPU drivers land")
	assert.False(t, on, "boost terms alone are not on-topic")
	assert.Equal(t, 5.0, w)
}

func TestKeywordScorerExclude(t *testing.T) {
	w, on := aiScorer().Score("AI writes your horoscope")
	assert.False(t, on)
	assert.Zero(t, w)
}

func TestKeywordScorerDeterministic(t *testing.T) {
	s := NewKeywordScorer(Rules{Boost: map[string]float64{"a1": 0.1, "b2": 0.2, "c3": 0.3, "d4": 0.4}})
	first, _ := s.Score("a1 b2 c3 d4")
	for i := 0; i < 50; i++ {
		again, _ := s.Score("a1 b2 c3 d4")
		assert.Equal(t, first, again)
	}
}

func TestApplyUsesSourceTitleAndSnippet(t *testing.T) {
	s := NewKeywordScorer(Rules{Core: []string{"techcrunch", "chip", "fab"}})
	cs := []news.Candidate{
		{SourceHost: "techcrunch.com", Title: "Funding round"},
		{Title: "Nothing here", Snippet: "a new chip fab opens"},
		{Title: "Weather"},
	}

	out := Apply(s, cs)
	assert.True(t, out[0].OnTopic)
	assert.True(t, out[1].OnTopic)
	assert.Equal(t, 2*float64(DefaultCoreWeight), out[1].Weight)
	assert.False(t, out[2].OnTopic)
	assert.Zero(t, cs[1].Weight, "input slice is not modified")
}

func TestNeutralScorerKeepsEverything(t *testing.T) {
	out := Apply(NeutralScorer{}, []news.Candidate{{Title: "anything"}})
	assert.True(t, out[0].OnTopic)
	assert.Zero(t, out[0].Weight)
}
