package matching

import (
	"math"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestExtractRange(t *testing.T) {
	e := FeatureExtractor{DefaultMaxDistanceKm: 100}
	requester := withMaxDistance(withLocation(profile(1, 18, "female"), 0, 0), 50)
	requester.Interests = []string{"music", "hiking"}
	requester.LookingFor = []string{"relationship"}

	candidates := []Profile{
		profile(2, 120, "male"),
		withLocation(profile(3, 18, "male"), 0, 0),
		withLocation(profile(4, 60, "male"), 80, 170),
		func() Profile {
			p := profile(5, 25, "male")
			p.VerificationLevel = 3
			p.Interests = []string{"MUSIC", "hiking"}
			p.LookingFor = []string{"friendship", "relationship"}
			return p
		}(),
	}

	for _, c := range candidates {
		v := e.Extract(&requester, &c)
		if len(v) != len(FeatureNames) {
			t.Fatalf("len = %d, want %d", len(v), len(FeatureNames))
		}
		for i, x := range v {
			if x < 0 || x > 1 || math.IsNaN(x) {
				t.Errorf("candidate %d feature %s = %v, want in [0,1]", c.ID, FeatureNames[i], x)
			}
		}
	}
}

func TestExtractValues(t *testing.T) {
	e := FeatureExtractor{DefaultMaxDistanceKm: 100}

	requester := withLocation(profile(1, 30, "female"), 0, 0)
	requester.Interests = []string{"music", "hiking", "art"}
	requester.LookingFor = []string{"relationship"}

	candidate := withLocation(profile(2, 35, "male"), 0, 0.5) // ~55km
	candidate.Interests = []string{"Music", "art", "chess", "golf"}
	candidate.LookingFor = []string{"relationship", "friendship"}
	candidate.VerificationLevel = 2
	candidate.GenderPreferences = []string{"male"}

	v := e.Extract(&requester, &candidate)

	tests := []struct {
		feature string
		want    float64
	}{
		{FeatureAgeProximity, 0.75},
		{FeatureSharedInterests, 2.0 / 5.0},
		{FeatureDistance, 1 - 55.0/100},
		{FeatureLookingForOverlap, 1},
		{FeatureReciprocalFit, 0.5},
		{FeatureVerification, 2.0 / 3.0},
	}
	for i, tt := range tests {
		if FeatureNames[i] != tt.feature {
			t.Fatalf("feature %d = %s, want %s", i, FeatureNames[i], tt.feature)
		}
		if !approxEqual(v[i], tt.want) {
			t.Errorf("%s = %v, want %v", tt.feature, v[i], tt.want)
		}
	}
}

func TestExtractNeutralValues(t *testing.T) {
	e := FeatureExtractor{DefaultMaxDistanceKm: 100}
	requester := profile(1, 30, "female")
	candidate := profile(2, 30, "male")

	v := e.Extract(&requester, &candidate)
	if v[1] != neutralFeature {
		t.Errorf("shared interests with empty sets = %v, want %v", v[1], neutralFeature)
	}
	if v[2] != neutralFeature {
		t.Errorf("distance without location = %v, want %v", v[2], neutralFeature)
	}
	if v[3] != neutralFeature {
		t.Errorf("looking for with empty sets = %v, want %v", v[3], neutralFeature)
	}
	if v[4] != 1 {
		t.Errorf("reciprocal fit without constraints = %v, want 1", v[4])
	}
	if v[5] != 0 {
		t.Errorf("verification of unverified = %v, want 0", v[5])
	}
}

func TestExtractUsesRequesterMaxDistance(t *testing.T) {
	e := FeatureExtractor{DefaultMaxDistanceKm: 100}
	requester := withMaxDistance(withLocation(profile(1, 30, "female"), 0, 0), 200)
	candidate := withLocation(profile(2, 30, "male"), 0, 1) // 111km

	v := e.Extract(&requester, &candidate)
	if want := 1 - 111.0/200; !approxEqual(v[2], want) {
		t.Errorf("distance = %v, want %v", v[2], want)
	}
}

func TestReciprocalFit(t *testing.T) {
	requester := profile(1, 30, "female")

	tests := []struct {
		name      string
		candidate Profile
		want      float64
	}{
		{"no constraints", profile(2, 30, "male"), 1},
		{"age admits", withAgeRange(profile(2, 30, "male"), 25, 35), 1},
		{"age rejects", withAgeRange(profile(2, 30, "male"), 35, 45), 0.5},
		{"gender rejects", func() Profile {
			p := profile(2, 30, "male")
			p.GenderPreferences = []string{"male"}
			return p
		}(), 0.5},
		{"both reject", func() Profile {
			p := withAgeRange(profile(2, 30, "male"), 18, 20)
			p.GenderPreferences = []string{"male"}
			return p
		}(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reciprocalFit(&requester, &tt.candidate); got != tt.want {
				t.Errorf("reciprocalFit = %v, want %v", got, tt.want)
			}
		})
	}
}
