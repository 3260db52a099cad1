package matching

import "strings"

// Filter reasons reported to metrics.
const (
	dropSelf      = "self"
	dropExcluded  = "excluded"
	dropDuplicate = "duplicate"
	dropMalformed = "malformed"
	dropAge       = "age"
	dropGender    = "gender"
	dropDistance  = "distance"
)

// FilterCandidates applies the requester's hard constraints to a raw pool.
// Cheap checks run first: identity and exclusions, then age, gender and
// finally distance. The result keeps the pool's order; an empty result is
// valid. Malformed candidates are dropped, a malformed requester is an error.
func FilterCandidates(requester *Profile, pool []Profile, exclusions map[int64]struct{}) ([]Profile, error) {
	if err := requester.Validate(); err != nil {
		return nil, err
	}

	genders := genderSet(requester.GenderPreferences)
	seen := make(map[int64]struct{}, len(pool))
	out := make([]Profile, 0, len(pool))

	for i := range pool {
		c := &pool[i]

		if reason := rejectReason(requester, c, exclusions, seen, genders); reason != "" {
			recordCandidateDropped(reason)
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, *c)
	}

	return out, nil
}

func rejectReason(requester, c *Profile, exclusions, seen map[int64]struct{}, genders map[string]struct{}) string {
	if c.ID == requester.ID {
		return dropSelf
	}
	if _, ok := exclusions[c.ID]; ok {
		return dropExcluded
	}
	if _, ok := seen[c.ID]; ok {
		return dropDuplicate
	}
	if c.Validate() != nil {
		return dropMalformed
	}
	if !ageInRange(c.Age, requester.MinAgePreference, requester.MaxAgePreference) {
		return dropAge
	}
	if genders != nil {
		if _, ok := genders[normalizeTag(c.GenderIdentity)]; !ok {
			return dropGender
		}
	}
	if requester.MaxDistanceKm != nil && requester.HasLocation() && c.HasLocation() {
		d, err := DistanceKm(*requester.Latitude, *requester.Longitude, *c.Latitude, *c.Longitude)
		if err != nil {
			return dropMalformed
		}
		if d > *requester.MaxDistanceKm {
			return dropDistance
		}
	}
	return ""
}

func ageInRange(age int, min, max *int) bool {
	if min != nil && age < *min {
		return false
	}
	if max != nil && age > *max {
		return false
	}
	return true
}

// genderSet returns nil when any gender is acceptable.
func genderSet(prefs []string) map[string]struct{} {
	if len(prefs) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(prefs))
	for _, g := range prefs {
		g = normalizeTag(g)
		if g == "any" {
			return nil
		}
		if g != "" {
			set[g] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

func normalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
