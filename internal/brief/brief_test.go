package brief

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/planner"
)

type stubSummarizer struct {
	text string
	err  error
	got  []news.Candidate
}

func (s *stubSummarizer) Summarize(_ context.Context, _ string, items []news.Candidate) (string, error) {
	s.got = items
	return s.text, s.err
}

func result() planner.Result {
	return planner.Result{
		Category: "science",
		Picked: []news.Candidate{
			{Title: "Probe reaches orbit", Link: "https://space.example/probe", SourceHost: "space.example",
				Snippet: "The probe entered a stable orbit on Tuesday. Engineers confirmed all instruments are healthy. More soon."},
			{Title: "New fossil", Link: "https://bio.example/fossil", SourceHost: "bio.example"},
		},
		Tier:      planner.Tier{MaxAgeHours: 24},
		Succeeded: true,
	}
}

func TestNotices(t *testing.T) {
	assert.Empty(t, Notices(planner.Result{Tier: planner.Tier{MaxAgeHours: 24}}, 24))
	assert.Equal(t, []string{NoticeWidened}, Notices(planner.Result{Tier: planner.Tier{MaxAgeHours: 48}}, 24))
	assert.Equal(t, []string{NoticeWidened, NoticeLoose},
		Notices(planner.Result{Tier: planner.Tier{MaxAgeHours: 24}, UsedSecondary: true, RelevanceRelaxed: true}, 24))
	assert.Equal(t, []string{NoticeNoUpdate}, Notices(planner.Result{Placeholder: true, UsedSecondary: true}, 24))
}

func TestBuildUsesSummarizer(t *testing.T) {
	s := &stubSummarizer{text: "  Two stories today.  "}
	br := NewBuilder(s, map[string]string{"science": "Science"}).Build(context.Background(), result(), 24)

	assert.Equal(t, "Two stories today.", br.Summary)
	assert.True(t, br.Generated)
	assert.Equal(t, "Science", br.Name)
	assert.Len(t, br.Items, 2)
	assert.Equal(t, "space.example", br.Items[0].Source)
	assert.Len(t, s.got, 2)
}

func TestBuildFallsBackOnSummarizerError(t *testing.T) {
	s := &stubSummarizer{err: errors.New("quota")}
	br := NewBuilder(s, nil).Build(context.Background(), result(), 24)

	assert.False(t, br.Generated)
	assert.Equal(t, "The probe entered a stable orbit on Tuesday. Engineers confirmed all instruments are healthy.", br.Summary)
}

func TestBuildPlaceholder(t *testing.T) {
	s := &stubSummarizer{text: "unused"}
	br := NewBuilder(s, nil).Build(context.Background(), planner.Result{Category: "local", Placeholder: true}, 24)

	assert.True(t, br.Placeholder)
	assert.Empty(t, br.Items)
	assert.Equal(t, []string{NoticeNoUpdate}, br.Notices)
	assert.Nil(t, s.got, "placeholder never reaches the summariser")
}

func TestFallbackSummary(t *testing.T) {
	assert.Equal(t, "(No content)", fallbackSummary(nil))
	assert.Equal(t, "Title only", fallbackSummary([]news.Candidate{{Title: "Title only"}}))
	assert.Equal(t, "Short. Bits.", fallbackSummary([]news.Candidate{{Snippet: "Short. Bits."}}))
}

func TestFormat(t *testing.T) {
	br := NewBuilder(nil, nil).Build(context.Background(), result(), 12)
	out := Format(br)
	assert.Contains(t, out, "== science ==")
	assert.Contains(t, out, "[Sources widened]")
	assert.Contains(t, out, "1. Probe reaches orbit (space.example)")
}
