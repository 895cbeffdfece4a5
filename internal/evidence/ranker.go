package evidence

import "sort"

// DefaultTopK bounds merged result length when no explicit K is set.
const DefaultTopK = 10

// BoostRule adds Weight to a candidate's adjusted score when the metadata
// key is present and, if Equals is set, carries that exact value. Rules
// are data, not code: new boost heuristics ship as configuration.
type BoostRule struct {
	Key    string  `yaml:"key" json:"key"`
	Equals string  `yaml:"equals,omitempty" json:"equals,omitempty"`
	Weight float64 `yaml:"weight" json:"weight"`
}

func (r BoostRule) matches(c Candidate) bool {
	v, ok := c.Metadata[r.Key]
	if !ok {
		return false
	}
	return r.Equals == "" || r.Equals == v
}

// Ranker merges candidate sets from one or more similarity searches into
// a single deterministic ranking. It is stateless and safe for concurrent
// use.
type Ranker struct {
	topK int
}

func NewRanker(topK int) *Ranker {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Ranker{topK: topK}
}

// Merge unions primary and secondary, deduplicates by ID (first occurrence
// wins, so primary takes precedence on collision), orders by boosted score
// descending with input order breaking ties, and truncates to K. Original
// scores are preserved on the returned candidates; boosts affect ordering
// only. Empty inputs yield an empty slice.
func (r *Ranker) Merge(primary, secondary []Candidate, rules []BoostRule) []Candidate {
	merged := make([]Candidate, 0, len(primary)+len(secondary))
	seen := make(map[string]struct{}, len(primary)+len(secondary))

	for _, set := range [][]Candidate{primary, secondary} {
		for _, c := range set {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			merged = append(merged, c)
		}
	}

	adjusted := make([]float64, len(merged))
	for i, c := range merged {
		score := c.Score
		for _, rule := range rules {
			if rule.matches(c) {
				score += rule.Weight
			}
		}
		adjusted[i] = score
	}

	idx := make([]int, len(merged))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return adjusted[idx[a]] > adjusted[idx[b]]
	})

	n := len(merged)
	if n > r.topK {
		n = r.topK
	}
	out := make([]Candidate, n)
	for i := 0; i < n; i++ {
		out[i] = merged[idx[i]]
	}
	return out
}
