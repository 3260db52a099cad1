package matching

import "math"

const (
	DefaultLearningRate  = 0.3
	DefaultWeightClipMin = -1.0
	DefaultWeightClipMax = 1.0
)

// Learner updates preference weights from liked and disliked profiles using
// a clipped mean difference blended into the prior by an exponential moving
// average.
type Learner struct {
	alpha     float64
	clipMin   float64
	clipMax   float64
	extractor FeatureExtractor
}

func NewLearner(alpha, clipMin, clipMax float64, extractor FeatureExtractor) (*Learner, error) {
	if math.IsNaN(alpha) || alpha <= 0 || alpha > 1 {
		return nil, validationErrorf("learning rate %v outside (0, 1]", alpha)
	}
	if math.IsNaN(clipMin) || math.IsNaN(clipMax) || math.IsInf(clipMin, 0) || math.IsInf(clipMax, 0) || clipMin >= clipMax {
		return nil, validationErrorf("weight clip range [%v, %v] is empty or unbounded", clipMin, clipMax)
	}
	return &Learner{alpha: alpha, clipMin: clipMin, clipMax: clipMax, extractor: extractor}, nil
}

// DefaultWeights is the uniform vector used before any history exists.
func DefaultWeights() PreferenceWeights {
	w := make(PreferenceWeights, len(FeatureNames))
	for _, name := range FeatureNames {
		w[name] = defaultWeight()
	}
	return w
}

func defaultWeight() float64 {
	return 1 / float64(len(FeatureNames))
}

// Normalize returns prior with every feature present, finite and clipped.
func (l *Learner) Normalize(prior PreferenceWeights) PreferenceWeights {
	out := make(PreferenceWeights, len(FeatureNames))
	for _, name := range FeatureNames {
		v, ok := prior[name]
		if !ok || !isFinite(v) {
			v = defaultWeight()
		}
		out[name] = l.clip(v)
	}
	return out
}

// ComputeWeights blends the liked-minus-disliked feature means into prior.
// With no liked and no disliked profiles the prior is returned unchanged.
// An empty side contributes a zero baseline.
func (l *Learner) ComputeWeights(user *Profile, liked, disliked []Profile, prior PreferenceWeights) (PreferenceWeights, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}

	base := l.Normalize(prior)
	if len(liked) == 0 && len(disliked) == 0 {
		return base, nil
	}

	likedMean := l.meanFeatures(user, liked)
	dislikedMean := l.meanFeatures(user, disliked)

	out := make(PreferenceWeights, len(FeatureNames))
	for i, name := range FeatureNames {
		delta := l.clip(likedMean[i] - dislikedMean[i])
		next := l.alpha*delta + (1-l.alpha)*base[name]
		if !isFinite(next) {
			next = defaultWeight()
		}
		out[name] = l.clip(next)
	}
	return out, nil
}

// meanFeatures is the per-feature mean, or zeros for an empty set.
func (l *Learner) meanFeatures(user *Profile, profiles []Profile) FeatureVector {
	mean := make(FeatureVector, len(FeatureNames))
	if len(profiles) == 0 {
		return mean
	}
	for i := range profiles {
		v := l.extractor.Extract(user, &profiles[i])
		for j := range mean {
			mean[j] += v[j]
		}
	}
	for j := range mean {
		mean[j] /= float64(len(profiles))
	}
	return mean
}

func (l *Learner) clip(v float64) float64 {
	return math.Max(l.clipMin, math.Min(l.clipMax, v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
