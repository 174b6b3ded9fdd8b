package news

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityKeyLinkVariants(t *testing.T) {
	variants := []string{
		"https://www.Example.com/World/Story-1/",
		"http://example.com/world/story-1",
		"https://EXAMPLE.com:443/world/story-1?utm_source=rss#top",
		"https://www.example.com/world/story-1",
	}

	want := Candidate{Link: variants[0]}.IdentityKey()
	require.Equal(t, "link:example.com/world/story-1", want)
	for _, v := range variants {
		assert.Equal(t, want, Candidate{Link: v, Title: "anything " + v}.IdentityKey(), v)
	}
}

func TestIdentityKeyTitleFallback(t *testing.T) {
	a := Candidate{Link: "not a url", Title: "Markets Rally,  After   Fed Decision!"}
	b := Candidate{Link: "", Title: "markets rally after fed decision"}

	assert.Equal(t, "title:markets rally after fed decision", a.IdentityKey())
	assert.Equal(t, a.IdentityKey(), b.IdentityKey())
}

func TestTitleKeySharedAcrossDifferentLinks(t *testing.T) {
	a := Candidate{Link: "https://a.example/x", Title: "Chip export rules tightened"}
	b := Candidate{Link: "https://b.example/y", Title: "Chip Export Rules Tightened."}

	assert.NotEqual(t, a.LinkKey(), b.LinkKey())
	assert.Equal(t, a.TitleKey(), b.TitleKey())
	assert.ElementsMatch(t, []string{a.LinkKey(), a.TitleKey()}, a.Keys())
}

func TestLinkAndTitleKeysNeverCollide(t *testing.T) {
	c := Candidate{Link: "https://example.com/a", Title: "example com a"}
	assert.NotEqual(t, c.LinkKey(), c.TitleKey())
}

func TestNormalizeLinkRejects(t *testing.T) {
	for _, raw := range []string{"", "   ", "/relative/path", "ftp://example.com/file", "mailto:x@example.com"} {
		_, ok := NormalizeLink(raw)
		assert.False(t, ok, raw)
	}
}

func TestValid(t *testing.T) {
	assert.False(t, Candidate{}.Valid())
	assert.False(t, Candidate{Title: " -- "}.Valid())
	assert.True(t, Candidate{Title: "Headline"}.Valid())
	assert.True(t, Candidate{Link: "https://example.com/x"}.Valid())
	assert.False(t, Candidate{Link: "urn:uuid:1"}.Valid(), "a bare GUID has no identity")
	assert.True(t, Candidate{Link: "tag:site,2020:1", Title: "Backed by a title"}.Valid())
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	pub := now.Add(-3 * time.Hour)

	age, ok := Candidate{PublishedAt: &pub}.Age(now)
	require.True(t, ok)
	assert.Equal(t, 3*time.Hour, age)

	_, ok = Candidate{}.Age(now)
	assert.False(t, ok)
}

func TestDistinctHosts(t *testing.T) {
	cs := []Candidate{{SourceHost: "a"}, {SourceHost: "b"}, {SourceHost: "a"}}
	assert.Equal(t, 2, DistinctHosts(cs))
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, HostCounts(cs))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "bbc.co.uk", HostOf("https://www.BBC.co.uk/news/1"))
	assert.Equal(t, "localhost:8080", HostOf("http://localhost:8080/feed"))
	assert.Equal(t, "", HostOf("nonsense"))
}
