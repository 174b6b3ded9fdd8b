package planner

import (
	"fmt"
	"time"
)

// DefaultWindows are the freshness windows in hours, tightest first.
var DefaultWindows = []int{24, 48, 72}

// Tier is one rung of the escalation ladder.
type Tier struct {
	MaxAgeHours   int  `json:"maxAgeHours"`
	UsesSecondary bool `json:"usesSecondary"`
}

func (t Tier) MaxAge() time.Duration {
	return time.Duration(t.MaxAgeHours) * time.Hour
}

func (t Tier) String() string {
	if t.UsesSecondary {
		return fmt.Sprintf("primary+secondary/%dh", t.MaxAgeHours)
	}
	return fmt.Sprintf("primary/%dh", t.MaxAgeHours)
}

// BuildLadder expands windows into (primary, w), (primary+secondary, w)
// pairs. Secondary rungs are left out when there is no secondary pool.
func BuildLadder(windows []int, hasSecondary bool) []Tier {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	tiers := make([]Tier, 0, 2*len(windows))
	for _, w := range windows {
		tiers = append(tiers, Tier{MaxAgeHours: w})
		if hasSecondary {
			tiers = append(tiers, Tier{MaxAgeHours: w, UsesSecondary: true})
		}
	}
	return tiers
}

// ValidateLadder checks that windows never shrink and that the pool never
// narrows within a window.
func ValidateLadder(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("ladder has no tiers")
	}
	for i, t := range tiers {
		if t.MaxAgeHours <= 0 {
			return fmt.Errorf("tier %d: window must be positive, got %dh", i, t.MaxAgeHours)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if t.MaxAgeHours < prev.MaxAgeHours {
			return fmt.Errorf("tier %d: window %dh is narrower than previous %dh", i, t.MaxAgeHours, prev.MaxAgeHours)
		}
		if t.MaxAgeHours == prev.MaxAgeHours && prev.UsesSecondary && !t.UsesSecondary {
			return fmt.Errorf("tier %d: pool narrows within the %dh window", i, t.MaxAgeHours)
		}
		if t == prev {
			return fmt.Errorf("tier %d: duplicate of previous tier %s", i, t)
		}
	}
	return nil
}
