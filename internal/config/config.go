// Package config loads run settings from the environment and category
// definitions from YAML.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/newsbrief/internal/planner"
	"github.com/deusflow/newsbrief/internal/relevance"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	// Categories
	CategoriesConfigPath string
	Categories           []Category

	// Persistence
	StateDir    string
	MetricsDir  string
	SeenBackend string // file | sqlite | postgres
	DatabaseURL string

	// Fetching
	FetchTimeout     time.Duration
	FetchConcurrency int

	// Selection defaults, overridable per category
	MaxItems              int
	MinItems              int
	RequiredDistinctHosts int
	FreshnessWindows      []int

	// Gemini settings
	GeminiAPIKey      string
	GeminiModel       string
	MaxGeminiRequests int // maximum Gemini requests per run (0 = unlimited)

	// App settings
	Debug                bool
	LogFormat            string
	EnableHTTPMonitoring bool
	MonitoringPort       string
}

// Category is one tab as declared in the categories file.
type Category struct {
	Key                   string   `yaml:"key"`
	Name                  string   `yaml:"name"`
	Priority              int      `yaml:"priority"`
	Primary               []string `yaml:"primary"`
	Secondary             []string `yaml:"secondary"`
	MaxItems              int      `yaml:"maxItems"`
	MinItems              int      `yaml:"minItems"`
	RequiredDistinctHosts int      `yaml:"requiredDistinctHosts"`
	Windows               []int    `yaml:"windows"`
	Scoring               Scoring  `yaml:"scoring"`
}

// Scoring is the keyword rule table for a category.
type Scoring struct {
	Core       []string           `yaml:"core"`
	CoreWeight float64            `yaml:"coreWeight"`
	Boost      map[string]float64 `yaml:"boost"`
	Exclude    []string           `yaml:"exclude"`
}

// CategoriesFile is the YAML layout:
//
//	categories:
//	  - key: security
//	    priority: 1
//	    primary: [...]
type CategoriesFile struct {
	Categories []Category `yaml:"categories"`
}

func Load() (*Config, error) {
	cfg := &Config{
		CategoriesConfigPath:  getEnvOrDefault("CATEGORIES_CONFIG_PATH", "configs/categories.yaml"),
		StateDir:              getEnvOrDefault("STATE_DIR", "state"),
		SeenBackend:           strings.ToLower(getEnvOrDefault("SEEN_BACKEND", BackendFile)),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		FetchTimeout:          time.Duration(getEnvIntOrDefault("FETCH_TIMEOUT_SECONDS", 20)) * time.Second,
		FetchConcurrency:      getEnvIntOrDefault("FETCH_CONCURRENCY", 6),
		MaxItems:              getEnvIntOrDefault("MAX_ITEMS", planner.DefaultMaxItems),
		MinItems:              getEnvIntOrDefault("MIN_ITEMS", planner.DefaultMinItems),
		RequiredDistinctHosts: getEnvIntOrDefault("REQUIRED_DISTINCT_HOSTS", planner.DefaultRequiredDistinctHosts),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		MaxGeminiRequests:     getEnvIntOrDefault("MAX_GEMINI_REQUESTS", 10),
		Debug:                 os.Getenv("DEBUG") == "true",
		LogFormat:             getEnvOrDefault("LOG_FORMAT", "text"),
		EnableHTTPMonitoring:  os.Getenv("ENABLE_HTTP_MONITORING") == "true",
		MonitoringPort:        getEnvOrDefault("MONITORING_PORT", "8080"),
	}
	cfg.MetricsDir = getEnvOrDefault("METRICS_DIR", cfg.StateDir+"/metrics")

	windows, err := parseWindows(getEnvOrDefault("FRESHNESS_WINDOWS", "24,48,72"))
	if err != nil {
		return nil, fmt.Errorf("FRESHNESS_WINDOWS: %w", err)
	}
	cfg.FreshnessWindows = windows

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cats, err := LoadCategories(cfg.CategoriesConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Categories = cats
	if err := cfg.validateThresholds(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateThresholds checks every category once per-category overrides and
// global defaults are merged, so a minItems no run could reach is rejected.
func (c *Config) validateThresholds() error {
	for _, cat := range c.Categories {
		r := cat.Resolve(c)
		if r.MinItems > r.MaxItems {
			return fmt.Errorf("category %q: minItems %d exceeds maxItems %d", cat.Key, r.MinItems, r.MaxItems)
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseWindows(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid window %q", part)
		}
		out = append(out, h)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no windows given")
	}
	return out, nil
}

func (c *Config) Validate() error {
	switch c.SeenBackend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for SEEN_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("SEEN_BACKEND must be 'file', 'sqlite' or 'postgres'")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive")
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("FETCH_CONCURRENCY must be positive")
	}
	if c.MaxItems <= 0 || c.MinItems <= 0 || c.RequiredDistinctHosts <= 0 {
		return fmt.Errorf("MAX_ITEMS, MIN_ITEMS and REQUIRED_DISTINCT_HOSTS must be positive")
	}
	if c.MinItems > c.MaxItems {
		return fmt.Errorf("MIN_ITEMS (%d) exceeds MAX_ITEMS (%d)", c.MinItems, c.MaxItems)
	}
	if err := planner.ValidateLadder(planner.BuildLadder(c.FreshnessWindows, true)); err != nil {
		return fmt.Errorf("FRESHNESS_WINDOWS: %w", err)
	}
	return nil
}

// LoadCategories reads and validates the categories file, returning the
// categories sorted by ascending priority. Ties keep declaration order.
func LoadCategories(path string) ([]Category, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var file CategoriesFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("%s: no categories defined", path)
	}

	keys := make(map[string]struct{}, len(file.Categories))
	for i, cat := range file.Categories {
		if cat.Key == "" {
			return nil, fmt.Errorf("category #%d: key is required", i+1)
		}
		if _, dup := keys[cat.Key]; dup {
			return nil, fmt.Errorf("category %q: duplicate key", cat.Key)
		}
		keys[cat.Key] = struct{}{}
		if len(cat.Primary) == 0 {
			return nil, fmt.Errorf("category %q: at least one primary source is required", cat.Key)
		}
		if len(cat.Windows) > 0 {
			if err := planner.ValidateLadder(planner.BuildLadder(cat.Windows, len(cat.Secondary) > 0)); err != nil {
				return nil, fmt.Errorf("category %q: %w", cat.Key, err)
			}
		}
		if cat.MinItems > 0 && cat.MaxItems > 0 && cat.MinItems > cat.MaxItems {
			return nil, fmt.Errorf("category %q: minItems exceeds maxItems", cat.Key)
		}
	}

	sort.SliceStable(file.Categories, func(i, j int) bool {
		return file.Categories[i].Priority < file.Categories[j].Priority
	})
	return file.Categories, nil
}

// PlannerCategories resolves every category against the global defaults.
func (c *Config) PlannerCategories() []planner.Category {
	out := make([]planner.Category, 0, len(c.Categories))
	for _, cat := range c.Categories {
		out = append(out, cat.Resolve(c))
	}
	return out
}

// Resolve fills unset thresholds from cfg and compiles the scorer.
func (cat Category) Resolve(cfg *Config) planner.Category {
	windows := cat.Windows
	if len(windows) == 0 {
		windows = cfg.FreshnessWindows
	}

	var scorer relevance.Scorer = relevance.NeutralScorer{}
	s := cat.Scoring
	if len(s.Core) > 0 || len(s.Boost) > 0 || len(s.Exclude) > 0 {
		scorer = relevance.NewKeywordScorer(relevance.Rules{
			Core:       s.Core,
			CoreWeight: s.CoreWeight,
			Boost:      s.Boost,
			Exclude:    s.Exclude,
		})
	}

	return planner.Category{
		Key:                   cat.Key,
		Primary:               cat.Primary,
		Secondary:             cat.Secondary,
		Ladder:                planner.BuildLadder(windows, len(cat.Secondary) > 0),
		Scorer:                scorer,
		MaxItems:              firstPositive(cat.MaxItems, cfg.MaxItems),
		MinItems:              firstPositive(cat.MinItems, cfg.MinItems),
		RequiredDistinctHosts: firstPositive(cat.RequiredDistinctHosts, cfg.RequiredDistinctHosts),
	}
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
