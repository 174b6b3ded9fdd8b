package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deusflow/newsbrief/internal/news"
)

func TestClaimIsCopyOnWrite(t *testing.T) {
	var empty ExclusionSet
	story := news.Candidate{Title: "Big Story", Link: "https://www.site.example/big/"}

	claimed := empty.Claim(story)

	assert.False(t, empty.ContainsAny(story))
	assert.True(t, claimed.ContainsAny(story))
	assert.True(t, claimed.Contains("link:site.example/big"))
	assert.True(t, claimed.Contains("title:big story"))
	assert.Equal(t, 2, claimed.Len())
}

func TestContainsAnyMatchesEitherIdentity(t *testing.T) {
	set := ExclusionSet{}.Claim(news.Candidate{Title: "Rate cut announced", Link: "https://a.example/x"})

	sameTitle := news.Candidate{Title: "RATE CUT — announced!", Link: "https://b.example/y"}
	sameLink := news.Candidate{Title: "Different words", Link: "http://A.example/x?ref=rss"}
	other := news.Candidate{Title: "Unrelated", Link: "https://c.example/z"}

	assert.True(t, set.ContainsAny(sameTitle))
	assert.True(t, set.ContainsAny(sameLink))
	assert.False(t, set.ContainsAny(other))
}
