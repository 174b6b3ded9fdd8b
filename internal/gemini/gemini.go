// Package gemini summarises a category's picks with Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/ratelimit"
	"github.com/deusflow/newsbrief/internal/retry"
)

const (
	DefaultModel   = "gemini-1.5-flash"
	maxPromptRunes = 6000
)

type generateFunc func(ctx context.Context, prompt string) (string, error)

type Client struct {
	client   *genai.Client
	generate generateFunc
	budget   *ratelimit.Budget
	retry    retry.RetryConfig
}

func NewClient(ctx context.Context, apiKey, model string, budget *ratelimit.Budget) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	gm := client.GenerativeModel(model)

	c := &Client{client: client, budget: budget, retry: retry.DefaultConfig}
	c.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}
		return responseText(resp)
	}
	return c, nil
}

func (c *Client) Close() {
	if c.budget != nil {
		logger.Info("gemini requests used", "count", c.budget.Used())
	}
	if c.client != nil {
		c.client.Close()
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response from Gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("no text in Gemini response")
	}
	return b.String(), nil
}

// Summarize writes a short digest of items. Every attempt spends one unit
// of the run's budget; an exhausted budget is not retried.
func (c *Client) Summarize(ctx context.Context, category string, items []news.Candidate) (string, error) {
	if len(items) == 0 {
		return "", errors.New("nothing to summarise")
	}
	prompt := buildPrompt(category, items)

	var raw string
	err := retry.WithRetry(ctx, c.retry, func(ctx context.Context) error {
		if c.budget != nil {
			if err := c.budget.Acquire(ctx); err != nil {
				return retry.Permanent(err)
			}
		}
		text, err := c.generate(ctx, prompt)
		if err != nil {
			return err
		}
		raw = text
		return nil
	})
	if err != nil {
		return "", err
	}

	summary := parseSummary(raw)
	if summary == "" {
		logger.Warn("could not parse Gemini response", "category", category, "raw", news.Truncate(raw, 200))
		return "", errors.New("could not parse Gemini response")
	}
	return summary, nil
}

func buildPrompt(category string, items []news.Candidate) string {
	var list strings.Builder
	for i, it := range items {
		fmt.Fprintf(&list, "%d. %s (%s)\n", i+1, it.Title, it.SourceHost)
		if it.Snippet != "" {
			fmt.Fprintf(&list, "   %s\n", strings.Join(strings.Fields(it.Snippet), " "))
		}
	}
	body := list.String()
	if utf8.RuneCountInString(body) > maxPromptRunes {
		runes := []rune(body)
		body = string(runes[:maxPromptRunes]) + "\n[TRUNCATED]"
	}

	return fmt.Sprintf(`Summarise today's %q news in 2-3 plain sentences for a daily brief.

STORIES:
%s
REQUIREMENTS:
Only use facts present in the stories above.
Do not start with phrases like "Today's news is about".
Do not translate proper names of brands or organisations.

Answer strictly in this format:

SUMMARY: <2-3 sentences>
`, category, body)
}

var summaryLabel = regexp.MustCompile(`(?i)^\**\s*(SUMMARY|DIGEST)\s*\**\s*:\s*\**\s*`)

// parseSummary extracts the labelled block, or the whole reply when the
// model ignored the format.
func parseSummary(response string) string {
	var labelled, plain []string
	inSummary := false
	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if summaryLabel.MatchString(line) {
			inSummary = true
			if rest := strings.TrimSpace(summaryLabel.ReplaceAllString(line, "")); rest != "" {
				labelled = append(labelled, rest)
			}
			continue
		}
		if inSummary {
			labelled = append(labelled, line)
		}
		plain = append(plain, line)
	}
	if len(labelled) > 0 {
		return strings.Join(labelled, " ")
	}
	return strings.Join(plain, " ")
}
