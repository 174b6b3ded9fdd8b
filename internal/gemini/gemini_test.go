package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/ratelimit"
	"github.com/deusflow/newsbrief/internal/retry"
)

func fakeClient(budget *ratelimit.Budget, gen generateFunc) *Client {
	return &Client{
		generate: gen,
		budget:   budget,
		retry:    retry.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond},
	}
}

var items = []news.Candidate{
	{Title: "Rates held", SourceHost: "econ.example", Snippet: "The central bank\nkept rates   unchanged."},
	{Title: "Jobs report", SourceHost: "labour.example"},
}

func TestParseSummary(t *testing.T) {
	cases := []struct{ in, want string }{
		{in: "SUMMARY: Rates held steady.", want: "Rates held steady."},
		{in: "Intro line\n**Summary:** First.\nSecond.", want: "First. Second."},
		{in: "summary:\nOn the next line.", want: "On the next line."},
		{in: "The model ignored the format.\nBut said this.", want: "The model ignored the format. But said this."},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseSummary(tc.in), tc.in)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("economy", items)
	assert.Contains(t, p, `"economy"`)
	assert.Contains(t, p, "1. Rates held (econ.example)")
	assert.Contains(t, p, "   The central bank kept rates unchanged.")
	assert.Contains(t, p, "SUMMARY:")

	long := []news.Candidate{{Title: strings.Repeat("x", maxPromptRunes+100)}}
	assert.Contains(t, buildPrompt("c", long), "[TRUNCATED]")
}

func TestSummarizeRetriesAndSpendsBudget(t *testing.T) {
	budget := ratelimit.NewBudget(5, 0)
	calls := 0
	c := fakeClient(budget, func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("503")
		}
		return "SUMMARY: Rates held and jobs grew.", nil
	})

	got, err := c.Summarize(context.Background(), "economy", items)
	require.NoError(t, err)
	assert.Equal(t, "Rates held and jobs grew.", got)
	assert.Equal(t, 2, budget.Used())
}

func TestSummarizeStopsWhenBudgetExhausted(t *testing.T) {
	budget := ratelimit.NewBudget(1, 0)
	calls := 0
	c := fakeClient(budget, func(context.Context, string) (string, error) {
		calls++
		return "", errors.New("503")
	})

	_, err := c.Summarize(context.Background(), "economy", items)
	assert.ErrorIs(t, err, ratelimit.ErrBudgetExhausted)
	assert.Equal(t, 1, calls)
}

func TestSummarizeRejectsEmpty(t *testing.T) {
	c := fakeClient(nil, func(context.Context, string) (string, error) { return "  \n ", nil })

	_, err := c.Summarize(context.Background(), "economy", items)
	assert.Error(t, err)

	_, err = c.Summarize(context.Background(), "economy", nil)
	assert.Error(t, err)
}

func TestResponseText(t *testing.T) {
	_, err := responseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	text, err := responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("SUMMARY: "), genai.Text("ok")}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, "SUMMARY: ok", text)
}
