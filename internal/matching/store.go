package matching

import "context"

// PairTx is a unit of work scoped to one pair of users. Every read and write
// made through it commits or rolls back together, and no other PairTx for the
// same pair runs concurrently.
type PairTx interface {
	// GetMatch returns nil when the record does not exist.
	GetMatch(ctx context.Context, userID, matchedUserID int64) (*Match, error)
	PutMatch(ctx context.Context, m *Match) error
	// LatestInteraction returns nil when the actor never acted on the target.
	LatestInteraction(ctx context.Context, actorID, targetID int64) (*Interaction, error)
	AppendInteraction(ctx context.Context, in Interaction) error
}

// Repository persists interactions, match records and learned weights.
// Implementations report retryable failures wrapped in ErrTransientStore.
type Repository interface {
	WithPairTx(ctx context.Context, a, b int64, fn func(tx PairTx) error) error

	GetExclusionSet(ctx context.Context, userID int64) (map[int64]struct{}, error)
	GetInteractionHistory(ctx context.Context, userID int64, kind InteractionKind, limit int) ([]int64, error)

	// GetWeights returns nil when the user has no learned weights yet.
	GetWeights(ctx context.Context, userID int64) (PreferenceWeights, error)
	SaveWeights(ctx context.Context, userID int64, w PreferenceWeights) error

	ListMatches(ctx context.Context, userID int64, status MatchStatus) ([]*Match, error)
	ListReceived(ctx context.Context, userID int64, status MatchStatus) ([]*Match, error)
}

// PoolHints narrow the raw candidate pool at the storage level. They are
// deliberately looser than FilterCandidates, which stays authoritative.
type PoolHints struct {
	RequesterID int64
	ExcludeIDs  []int64
	MinAge      *int
	MaxAge      *int
	// Genders is lower-cased; empty means any.
	Genders []string
	// Box, when set, admits profiles inside it or without coordinates.
	Box   *BoundingBox
	Limit int
}

// ProfileSource reads profiles owned by the profile service.
type ProfileSource interface {
	GetProfile(ctx context.Context, id int64) (*Profile, error)
	GetProfiles(ctx context.Context, ids []int64) ([]Profile, error)
	QueryProfilePool(ctx context.Context, hints PoolHints) ([]Profile, error)
}

// poolHints derives storage hints from the requester's preferences.
func poolHints(requester *Profile, exclusions map[int64]struct{}, limit int) PoolHints {
	hints := PoolHints{
		RequesterID: requester.ID,
		MinAge:      requester.MinAgePreference,
		MaxAge:      requester.MaxAgePreference,
		Limit:       limit,
	}

	hints.ExcludeIDs = make([]int64, 0, len(exclusions))
	for id := range exclusions {
		hints.ExcludeIDs = append(hints.ExcludeIDs, id)
	}

	if set := genderSet(requester.GenderPreferences); set != nil {
		for g := range set {
			hints.Genders = append(hints.Genders, g)
		}
	}

	if requester.MaxDistanceKm != nil && requester.HasLocation() {
		box := NewBoundingBox(*requester.Latitude, *requester.Longitude, *requester.MaxDistanceKm)
		hints.Box = &box
	}

	return hints
}
