package matching

import "math"

// Feature names, in scoring order.
const (
	FeatureAgeProximity      = "age_proximity"
	FeatureSharedInterests   = "shared_interest_ratio"
	FeatureDistance          = "inverse_normalized_distance"
	FeatureLookingForOverlap = "looking_for_overlap"
	FeatureReciprocalFit     = "reciprocal_fit"
	FeatureVerification      = "verification"
)

// FeatureNames is the fixed feature set. Indices line up with FeatureVector.
var FeatureNames = []string{
	FeatureAgeProximity,
	FeatureSharedInterests,
	FeatureDistance,
	FeatureLookingForOverlap,
	FeatureReciprocalFit,
	FeatureVerification,
}

const (
	maxAgeGap             = 20
	maxVerificationLevel  = 3
	neutralFeature        = 0.5
	fallbackMaxDistanceKm = 100.0
)

// FeatureVector holds one value in [0,1] per entry of FeatureNames.
type FeatureVector []float64

// FeatureExtractor computes requester/candidate feature vectors.
type FeatureExtractor struct {
	// DefaultMaxDistanceKm normalises distance when the requester has no limit.
	DefaultMaxDistanceKm float64
}

func (e FeatureExtractor) Extract(requester, candidate *Profile) FeatureVector {
	return FeatureVector{
		ageProximity(requester.Age, candidate.Age),
		jaccard(requester.Interests, candidate.Interests),
		e.inverseDistance(requester, candidate),
		overlap(requester.LookingFor, candidate.LookingFor),
		reciprocalFit(requester, candidate),
		verificationScore(candidate.VerificationLevel),
	}
}

func ageProximity(a, b int) float64 {
	gap := math.Abs(float64(a - b))
	return 1 - math.Min(gap, maxAgeGap)/maxAgeGap
}

// jaccard is |A∩B| / |A∪B| over case-insensitive tags.
func jaccard(a, b []string) float64 {
	setA, setB := tagSet(a), tagSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return neutralFeature
	}

	inter := intersectionSize(setA, setB)
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// overlap is |A∩B| / min(|A|,|B|).
func overlap(a, b []string) float64 {
	setA, setB := tagSet(a), tagSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return neutralFeature
	}

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return float64(intersectionSize(setA, setB)) / float64(smaller)
}

func (e FeatureExtractor) inverseDistance(requester, candidate *Profile) float64 {
	if !requester.HasLocation() || !candidate.HasLocation() {
		return neutralFeature
	}
	d, err := DistanceKm(*requester.Latitude, *requester.Longitude, *candidate.Latitude, *candidate.Longitude)
	if err != nil {
		return neutralFeature
	}

	limit := e.DefaultMaxDistanceKm
	if requester.MaxDistanceKm != nil {
		limit = *requester.MaxDistanceKm
	}
	if limit <= 0 {
		limit = fallbackMaxDistanceKm
	}
	return 1 - math.Min(d, limit)/limit
}

// reciprocalFit scores whether the candidate's own constraints admit the
// requester. Missing constraints count as satisfied.
func reciprocalFit(requester, candidate *Profile) float64 {
	score := 0.0
	if ageInRange(requester.Age, candidate.MinAgePreference, candidate.MaxAgePreference) {
		score += 0.5
	}
	if genders := genderSet(candidate.GenderPreferences); genders == nil {
		score += 0.5
	} else if _, ok := genders[normalizeTag(requester.GenderIdentity)]; ok {
		score += 0.5
	}
	return score
}

func verificationScore(level int) float64 {
	if level <= 0 {
		return 0
	}
	if level > maxVerificationLevel {
		level = maxVerificationLevel
	}
	return float64(level) / maxVerificationLevel
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t = normalizeTag(t); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

func intersectionSize(a, b map[string]struct{}) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
