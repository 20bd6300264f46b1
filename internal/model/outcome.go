package model

import "time"

// Tier names one identity resolution strategy.
type Tier string

const (
	TierDirectMap  Tier = "directMap"
	TierFuzzyTitle Tier = "fuzzyTitle"
	TierLogScan    Tier = "logScan"
	TierLiveQuery  Tier = "liveQuery"
)

// Tiers lists every tier in increasing cost order.
func Tiers() []Tier {
	return []Tier{TierDirectMap, TierFuzzyTitle, TierLogScan, TierLiveQuery}
}

// ParseTier maps a tier name to its constant.
func ParseTier(name string) (Tier, bool) {
	for _, tier := range Tiers() {
		if string(tier) == name {
			return tier, true
		}
	}
	return "", false
}

// Outcome is one tier's answer for an item. A zero Recency means the
// evidence carries no timestamp.
type Outcome struct {
	Key     string    `json:"key"`
	ID      ID        `json:"resolvedId"`
	Slug    string    `json:"resolvedSlug,omitempty"`
	Tier    Tier      `json:"tier"`
	Recency time.Time `json:"recency,omitzero"`
	Source  string    `json:"source,omitempty"`
}

// Known reports whether the outcome carries a recency timestamp.
func (o Outcome) Known() bool {
	return !o.Recency.IsZero()
}

// Supersedes reports whether o should replace current as the best answer:
// strictly newer evidence wins, and unknown recency wins over known.
func (o Outcome) Supersedes(current Outcome) bool {
	switch {
	case !o.Known():
		return current.Known()
	case !current.Known():
		return false
	default:
		return o.Recency.After(current.Recency)
	}
}
