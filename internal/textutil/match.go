package textutil

// Score describes how two titles overlap.
type Score struct {
	Shared          int
	Overlap         float64
	CandidateTokens int
}

// OverlapScore compares a target title with a candidate title.
func OverlapScore(target, candidate string) Score {
	return ScoreSets(NewTokenSet(target), NewTokenSet(candidate))
}

// ScoreSets compares pre-tokenized titles.
func ScoreSets(target, candidate TokenSet) Score {
	score := Score{CandidateTokens: candidate.Len()}
	smaller := min(target.Len(), candidate.Len())
	if smaller == 0 {
		return score
	}
	score.Shared = target.Shared(candidate)
	score.Overlap = float64(score.Shared) / float64(smaller)
	return score
}

// MatchPolicy holds the thresholds that decide whether a fuzzy title score is
// accepted.
type MatchPolicy struct {
	// MinOverlap accepts any candidate at or above this ratio.
	MinOverlap float64
	// ShortOverlap applies to candidates with at most ShortTokens tokens.
	ShortOverlap float64
	ShortTokens  int
	// MinShared accepts any candidate sharing at least this many tokens.
	MinShared int
}

// DefaultMatchPolicy returns the standard thresholds.
func DefaultMatchPolicy() MatchPolicy {
	return MatchPolicy{MinOverlap: 0.5, ShortOverlap: 0.4, ShortTokens: 6, MinShared: 3}
}

// Accept reports whether score clears any of the policy thresholds.
func (p MatchPolicy) Accept(score Score) bool {
	if score.Shared == 0 {
		return false
	}
	if score.Overlap >= p.MinOverlap {
		return true
	}
	if score.CandidateTokens <= p.ShortTokens && score.Overlap >= p.ShortOverlap {
		return true
	}
	return p.MinShared > 0 && score.Shared >= p.MinShared
}

// Better reports whether a outranks b. Higher overlap wins, then more shared
// tokens.
func Better(a, b Score) bool {
	if a.Overlap != b.Overlap {
		return a.Overlap > b.Overlap
	}
	return a.Shared > b.Shared
}
