// Package brief turns committed selections into per-category briefs for
// downstream rendering.
package brief

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/planner"
)

const (
	NoticeWidened  = "Sources widened"
	NoticeLoose    = "Loosely related"
	NoticeNoUpdate = "No fresh updates"
)

// Summarizer is the opaque text-generation service.
type Summarizer interface {
	Summarize(ctx context.Context, category string, items []news.Candidate) (string, error)
}

type Item struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Source      string     `json:"source"`
	Snippet     string     `json:"snippet,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

type Brief struct {
	Category    string   `json:"category"`
	Name        string   `json:"name,omitempty"`
	Items       []Item   `json:"items"`
	Summary     string   `json:"summary"`
	Generated   bool     `json:"generated"`
	Notices     []string `json:"notices,omitempty"`
	Placeholder bool     `json:"placeholder"`
}

// Notices annotates a result with how far the planner had to reach.
// firstWindow is the category's tightest window in hours.
func Notices(res planner.Result, firstWindow int) []string {
	if res.Placeholder {
		return []string{NoticeNoUpdate}
	}
	var out []string
	if res.UsedSecondary || res.Tier.MaxAgeHours > firstWindow {
		out = append(out, NoticeWidened)
	}
	if res.RelevanceRelaxed {
		out = append(out, NoticeLoose)
	}
	return out
}

type Builder struct {
	summarizer Summarizer
	names      map[string]string
}

// NewBuilder uses s for summaries; s may be nil to always use the
// extractive fallback. names maps category keys to display names.
func NewBuilder(s Summarizer, names map[string]string) *Builder {
	return &Builder{summarizer: s, names: names}
}

// Build assembles the brief for one result. A summariser failure degrades
// to an extractive summary and never fails the brief.
func (b *Builder) Build(ctx context.Context, res planner.Result, firstWindow int) Brief {
	br := Brief{
		Category:    res.Category,
		Name:        b.names[res.Category],
		Notices:     Notices(res, firstWindow),
		Placeholder: res.Placeholder,
		Items:       make([]Item, 0, len(res.Picked)),
	}
	for _, c := range res.Picked {
		br.Items = append(br.Items, Item{
			Title:       c.Title,
			Link:        c.Link,
			Source:      c.SourceHost,
			Snippet:     c.Snippet,
			PublishedAt: c.PublishedAt,
		})
	}

	if res.Placeholder {
		br.Summary = "No new stories since the last brief."
		return br
	}

	if b.summarizer != nil {
		summary, err := b.summarizer.Summarize(ctx, res.Category, res.Picked)
		if err == nil && strings.TrimSpace(summary) != "" {
			br.Summary = strings.TrimSpace(summary)
			br.Generated = true
			return br
		}
		logger.Warn("summariser failed, using fallback", "category", res.Category, "error", err)
	}
	br.Summary = fallbackSummary(res.Picked)
	return br
}

// fallbackSummary keeps up to two substantial sentences from the lead
// item's snippet, or falls back to its title.
func fallbackSummary(items []news.Candidate) string {
	if len(items) == 0 {
		return "(No content)"
	}
	lead := items[0]
	c := strings.TrimSpace(lead.Snippet)
	if c == "" {
		return lead.Title
	}
	var picked []string
	for _, s := range strings.Split(c, ".") {
		s = strings.TrimSpace(s)
		if len(s) < 25 {
			continue
		}
		picked = append(picked, s)
		if len(picked) >= 2 {
			break
		}
	}
	if len(picked) == 0 {
		return news.Truncate(c, 160)
	}
	return strings.Join(picked, ". ") + "."
}

// Format renders a brief as plain text.
func Format(br Brief) string {
	var b strings.Builder
	title := br.Name
	if title == "" {
		title = br.Category
	}
	b.WriteString("== " + title + " ==\n")
	if len(br.Notices) > 0 {
		b.WriteString("[" + strings.Join(br.Notices, "] [") + "]\n")
	}
	b.WriteString(br.Summary + "\n")
	for i, it := range br.Items {
		fmt.Fprintf(&b, "%d. %s (%s)\n   %s\n", i+1, it.Title, it.Source, it.Link)
	}
	return b.String()
}
