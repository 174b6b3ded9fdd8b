// Package trends scores daily metrics snapshots so regressions in selection
// quality show up over time.
package trends

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/metrics"
	"github.com/deusflow/newsbrief/internal/storage"
)

// Weights is the maximum contribution of each scoring term; they sum to 100.
type Weights struct {
	RunSuccess         float64
	TabCompletion      float64
	RSSErrors          float64
	FreshnessPenalty   float64
	StrictRate         float64
	OffTopicPenalty    float64
	DuplicationPenalty float64
	HostDiversity      float64
}

var DefaultWeights = Weights{
	RunSuccess:         12,
	TabCompletion:      12,
	RSSErrors:          10,
	FreshnessPenalty:   6,
	StrictRate:         25,
	OffTopicPenalty:    15,
	DuplicationPenalty: 10,
	HostDiversity:      10,
}

const (
	maxRSSErrorsForFullScore = 5
	maxOffTopicRate          = 0.20
	maxDupRate               = 0.20
	targetHostDiversity      = 10
)

// Row is one scored day.
type Row struct {
	Date             string  `json:"date"`
	Score            float64 `json:"score"`
	TabsTotal        int     `json:"tabsTotal"`
	ThinTabs         int     `json:"thinTabs"`
	NoUpdateTabs     int     `json:"noUpdateTabs"`
	RSSErrors        int     `json:"rssErrors"`
	StrictRate       float64 `json:"strictRate"`
	OffTopicRate     float64 `json:"offTopicRate"`
	DupRate          float64 `json:"dupRate"`
	HostCount        int     `json:"hostCount"`
	FreshnessPenalty float64 `json:"freshnessPenalty"`
}

func clamp(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func hostCount(s metrics.Summary) int {
	if s.HostCount > 0 {
		return s.HostCount
	}
	hosts := make(map[string]struct{})
	for _, t := range s.Tabs {
		for _, src := range t.Sources {
			if src.Source != "" {
				hosts[src.Source] = struct{}{}
			}
		}
	}
	return len(hosts)
}

// FreshnessPenalty grows from 0 to 1 as the widest window used climbs from
// 24h to 48h and beyond.
func FreshnessPenalty(s metrics.Summary) float64 {
	worst := 0
	for _, t := range s.Tabs {
		if t.FreshnessUsed > 24 && t.FreshnessUsed > worst {
			worst = t.FreshnessUsed
		}
	}
	if worst == 0 {
		return 0
	}
	return clamp(float64(worst-24) / 24)
}

// ScoreDay rates one summary out of 100.
func ScoreDay(date string, s metrics.Summary, w Weights) Row {
	hosts := hostCount(s)
	row := Row{
		Date:             date,
		TabsTotal:        s.TabsTotal,
		ThinTabs:         s.ThinTabs,
		NoUpdateTabs:     s.NoUpdateTabs,
		RSSErrors:        s.RSSErrors,
		StrictRate:       ratio(s.StrictCount, s.PickedItemsTotal),
		OffTopicRate:     ratio(s.OffTopicCount, s.PickedItemsTotal),
		DupRate:          ratio(s.DupCount, max(1, s.PickedItemsTotal)),
		HostCount:        hosts,
		FreshnessPenalty: FreshnessPenalty(s),
	}

	run := 0.0
	if s.RunSuccess {
		run = w.RunSuccess
	}
	tabPenalty := 1.0
	if s.TabsTotal > 0 {
		tabPenalty = (float64(s.ThinTabs)*0.12 + float64(s.NoUpdateTabs)*0.30) / float64(s.TabsTotal)
	}

	score := run +
		w.TabCompletion*clamp(1-tabPenalty) +
		w.RSSErrors*clamp(1-float64(s.RSSErrors)/(maxRSSErrorsForFullScore*2)) +
		w.FreshnessPenalty*(1-row.FreshnessPenalty) +
		w.StrictRate*row.StrictRate +
		w.OffTopicPenalty*(1-clamp(row.OffTopicRate/maxOffTopicRate)) +
		w.DuplicationPenalty*(1-clamp(row.DupRate/maxDupRate)) +
		w.HostDiversity*clamp(float64(hosts)/targetHostDiversity)

	row.Score = math.Round(score*100) / 100
	return row
}

// Load scores every metrics-YYYY-MM-DD.json in dir, oldest first. Unreadable
// files are skipped with a warning.
func Load(dir string, w Weights) ([]Row, error) {
	files, err := filepath.Glob(filepath.Join(dir, metrics.DailyPrefix+"*.json"))
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, f := range files {
		date, ok := dateFromName(filepath.Base(f))
		if !ok {
			continue
		}
		s, err := metrics.ReadSummary(f)
		if err != nil {
			logger.Warn("skipping metrics snapshot", "path", f, "error", err)
			continue
		}
		rows = append(rows, ScoreDay(date, s, w))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows, nil
}

func dateFromName(name string) (string, bool) {
	if !strings.HasPrefix(name, metrics.DailyPrefix) || !strings.HasSuffix(name, ".json") {
		return "", false
	}
	date := strings.TrimSuffix(strings.TrimPrefix(name, metrics.DailyPrefix), ".json")
	if _, err := time.Parse(metrics.DailyLayout, date); err != nil {
		return "", false
	}
	return date, true
}

// Average is the mean score of the last n rows.
func Average(rows []Row, n int) float64 {
	if len(rows) == 0 {
		return 0
	}
	if n > len(rows) || n <= 0 {
		n = len(rows)
	}
	sum := 0.0
	for _, r := range rows[len(rows)-n:] {
		sum += r.Score
	}
	return sum / float64(n)
}

// Worst returns the n lowest-scoring rows, lowest first.
func Worst(rows []Row, n int) []Row {
	out := append([]Row(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// PrintSummary writes the human-readable overview of the latest day.
func PrintSummary(w io.Writer, rows []Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No metrics files found.")
		return
	}
	latest := rows[len(rows)-1]

	fmt.Fprintln(w, "=== Metrics Summary ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Latest day: %s\n", latest.Date)
	fmt.Fprintf(w, "Score: %.2f  (7d avg: %.2f)\n\n", latest.Score, Average(rows, 7))

	fmt.Fprintln(w, "Tabs:")
	fmt.Fprintf(w, "  total: %d\n", latest.TabsTotal)
	fmt.Fprintf(w, "  thin: %d\n", latest.ThinTabs)
	fmt.Fprintf(w, "  no-update: %d\n\n", latest.NoUpdateTabs)

	fmt.Fprintln(w, "Quality:")
	fmt.Fprintf(w, "  Strict rate: %.1f%%\n", latest.StrictRate*100)
	fmt.Fprintf(w, "  Off-topic rate: %.1f%%\n", latest.OffTopicRate*100)
	fmt.Fprintf(w, "  Duplication rate: %.1f%%\n", latest.DupRate*100)
	fmt.Fprintf(w, "  Host count: %d\n\n", latest.HostCount)

	fmt.Fprintln(w, "Reliability:")
	fmt.Fprintf(w, "  RSS errors: %d\n", latest.RSSErrors)
	fmt.Fprintf(w, "  Freshness penalty: %.2f\n\n", latest.FreshnessPenalty)

	fmt.Fprintln(w, "Worst recent days:")
	for _, r := range Worst(rows, 3) {
		fmt.Fprintf(w, "  %s -> %.2f\n", r.Date, r.Score)
	}
}

var csvHeader = []string{
	"date", "score", "tabsTotal", "thinTabs", "noUpdateTabs", "rssErrors",
	"strictRate", "offTopicRate", "dupRate", "hostCount", "freshnessPenalty",
}

func (r Row) record() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		r.Date, f(r.Score), strconv.Itoa(r.TabsTotal), strconv.Itoa(r.ThinTabs),
		strconv.Itoa(r.NoUpdateTabs), strconv.Itoa(r.RSSErrors), f(r.StrictRate),
		f(r.OffTopicRate), f(r.DupRate), strconv.Itoa(r.HostCount), f(r.FreshnessPenalty),
	}
}

// WriteReports writes metrics_trends.csv, metrics_trends.json and
// metrics_report.txt into dir.
func WriteReports(dir string, rows []Row, now time.Time) error {
	var csvBuf strings.Builder
	cw := csv.NewWriter(&csvBuf)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}

	jsonData, err := json.MarshalIndent(struct {
		GeneratedAt time.Time `json:"generated_at"`
		Rows        []Row     `json:"rows"`
	}{GeneratedAt: now.UTC(), Rows: rows}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("%s %.2f", r.Date, r.Score)
	}

	files := map[string][]byte{
		"metrics_trends.csv":  []byte(csvBuf.String()),
		"metrics_trends.json": jsonData,
		"metrics_report.txt":  []byte(strings.Join(lines, "\n")),
	}
	for name, data := range files {
		if err := storage.WriteFileAtomic(filepath.Join(dir, name), data, 0o644); err != nil {
			return &storage.PersistenceError{Op: "write trends", Err: err}
		}
	}
	return nil
}

// Run loads, prints and writes reports in one go.
func Run(metricsDir, outDir string, out io.Writer) error {
	if _, err := os.Stat(metricsDir); err != nil {
		return fmt.Errorf("metrics dir: %w", err)
	}
	rows, err := Load(metricsDir, DefaultWeights)
	if err != nil {
		return err
	}
	PrintSummary(out, rows)
	if len(rows) == 0 {
		return nil
	}
	if err := WriteReports(outDir, rows, time.Now()); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nFiles written to %s\n", outDir)
	return nil
}
