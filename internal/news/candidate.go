package news

import (
	"net/url"
	"strings"
	"time"
	"unicode"
)

// Identity key prefixes keep link- and title-derived keys from colliding.
const (
	LinkKeyPrefix  = "link:"
	TitleKeyPrefix = "title:"
)

// Candidate is one feed entry in the selection pipeline's working form.
type Candidate struct {
	Title       string
	Link        string
	SourceHost  string
	Source      string // feed URI the entry came from
	Snippet     string
	PublishedAt *time.Time

	// Set by relevance scoring, never persisted.
	Weight  float64
	OnTopic bool
}

// Valid reports whether the candidate can be identified. A link that is not
// an http(s) URL, such as a bare GUID, only counts when a title backs it.
func (c Candidate) Valid() bool {
	return c.IdentityKey() != ""
}

// LinkKey returns the link-derived identity key, or "" when the link does not parse.
func (c Candidate) LinkKey() string {
	if norm, ok := NormalizeLink(c.Link); ok {
		return LinkKeyPrefix + norm
	}
	return ""
}

// TitleKey returns the title-derived identity key, or "" for an empty title.
func (c Candidate) TitleKey() string {
	if norm := NormalizeTitle(c.Title); norm != "" {
		return TitleKeyPrefix + norm
	}
	return ""
}

// IdentityKey prefers the link identity and falls back to the title identity.
func (c Candidate) IdentityKey() string {
	if k := c.LinkKey(); k != "" {
		return k
	}
	return c.TitleKey()
}

// Keys returns every identity the candidate can be recognised by.
func (c Candidate) Keys() []string {
	keys := make([]string, 0, 2)
	if k := c.LinkKey(); k != "" {
		keys = append(keys, k)
	}
	if k := c.TitleKey(); k != "" {
		keys = append(keys, k)
	}
	return keys
}

// Age returns how long ago the candidate was published relative to now.
func (c Candidate) Age(now time.Time) (time.Duration, bool) {
	if c.PublishedAt == nil {
		return 0, false
	}
	return now.Sub(*c.PublishedAt), true
}

// NormalizeLink reduces an http(s) URL to lowercased host + path, without
// "www.", default ports, query, fragment or trailing slash.
func NormalizeLink(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", false
	}

	host := normalizeHost(u)
	if host == "" {
		return "", false
	}
	path := strings.TrimRight(strings.ToLower(u.Path), "/")
	return host + path, true
}

// HostOf returns the normalised host of a link, or "" if it does not parse.
func HostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return normalizeHost(u)
}

func normalizeHost(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}
	return host
}

// NormalizeTitle lowercases, replaces punctuation with spaces and collapses whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// DistinctHosts counts the different source hosts among cs.
func DistinctHosts(cs []Candidate) int {
	hosts := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		hosts[c.SourceHost] = struct{}{}
	}
	return len(hosts)
}

// HostCounts tallies candidates per source host.
func HostCounts(cs []Candidate) map[string]int {
	counts := make(map[string]int, len(cs))
	for _, c := range cs {
		counts[c.SourceHost]++
	}
	return counts
}
