package matching

import "sort"

// Scorer ranks candidates by the weighted sum of their feature values.
type Scorer struct {
	extractor FeatureExtractor
}

func NewScorer(extractor FeatureExtractor) *Scorer {
	return &Scorer{extractor: extractor}
}

// Score returns Σ w[f]·x[f] and the per-feature contributions. Missing or
// non-finite weights fall back to the default weight.
func (s *Scorer) Score(requester, candidate *Profile, weights PreferenceWeights) (float64, map[string]float64) {
	features := s.extractor.Extract(requester, candidate)
	factors := make(map[string]float64, len(FeatureNames))

	total := 0.0
	for i, name := range FeatureNames {
		w, ok := weights[name]
		if !ok || !isFinite(w) {
			w = defaultWeight()
		}
		contribution := w * features[i]
		factors[name] = contribution
		total += contribution
	}
	return total, factors
}

// RankCandidates scores and sorts candidates by score descending, breaking
// ties by ascending id. Identical inputs always produce identical output.
func (s *Scorer) RankCandidates(requester *Profile, candidates []Profile, weights PreferenceWeights) []ScoredProfile {
	ranked := make([]ScoredProfile, 0, len(candidates))
	for i := range candidates {
		score, factors := s.Score(requester, &candidates[i], weights)
		ranked = append(ranked, ScoredProfile{
			Profile: candidates[i],
			Score:   score,
			Factors: factors,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Profile.ID < ranked[j].Profile.ID
	})

	return ranked
}
