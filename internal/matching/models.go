package matching

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"

	"github.com/imadgeboyega/kiekky-matchmaker/internal/common/utils"
)

type InteractionKind string

const (
	KindLike    InteractionKind = "LIKE"
	KindDislike InteractionKind = "DISLIKE"
	KindSkip    InteractionKind = "SKIP"
)

func (k InteractionKind) Valid() bool {
	switch k {
	case KindLike, KindDislike, KindSkip:
		return true
	}
	return false
}

// excludes reports whether a latest interaction of this kind hides the target
func (k InteractionKind) excludes() bool {
	return k == KindDislike || k == KindSkip
}

type MatchStatus string

const (
	// StatusNone is never stored; it stands for a missing record.
	StatusNone      MatchStatus = ""
	StatusPending   MatchStatus = "PENDING"
	StatusActive    MatchStatus = "ACTIVE"
	StatusRejected  MatchStatus = "REJECTED"
	StatusUnmatched MatchStatus = "UNMATCHED"
)

// Profile is the read model of a user used for filtering and scoring.
// It is treated as immutable for the duration of one scoring pass.
type Profile struct {
	ID                int64          `db:"id" json:"id" validate:"gt=0"`
	Age               int            `db:"age" json:"age" validate:"gte=18,lte=120"`
	GenderIdentity    string         `db:"gender_identity" json:"gender_identity"`
	GenderPreferences pq.StringArray `db:"gender_preferences" json:"gender_preferences"`
	Interests         pq.StringArray `db:"interests" json:"interests"`
	LookingFor        pq.StringArray `db:"looking_for" json:"looking_for"`
	VerificationLevel int            `db:"verification_level" json:"verification_level" validate:"gte=0,lte=3"`
	Latitude          *float64       `db:"latitude" json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude         *float64       `db:"longitude" json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	MinAgePreference  *int           `db:"min_age_preference" json:"min_age_preference,omitempty" validate:"omitempty,gte=18,lte=120"`
	MaxAgePreference  *int           `db:"max_age_preference" json:"max_age_preference,omitempty" validate:"omitempty,gte=18,lte=120"`
	MaxDistanceKm     *float64       `db:"max_distance_km" json:"max_distance_km,omitempty" validate:"omitempty,gt=0"`
}

// Validate checks field ranges and the cross-field constraints tags cannot express.
func (p *Profile) Validate() error {
	if p == nil {
		return validationErrorf("profile is nil")
	}
	if err := utils.ValidateStruct(p); err != nil {
		return validationErrorf("profile %d: %v", p.ID, err)
	}
	if (p.Latitude == nil) != (p.Longitude == nil) {
		return validationErrorf("profile %d: latitude and longitude must be set together", p.ID)
	}
	if p.HasLocation() && (math.IsNaN(*p.Latitude) || math.IsNaN(*p.Longitude)) {
		return validationErrorf("profile %d: coordinates are not numbers", p.ID)
	}
	if p.MinAgePreference != nil && p.MaxAgePreference != nil && *p.MinAgePreference > *p.MaxAgePreference {
		return validationErrorf("profile %d: min age preference %d exceeds max %d",
			p.ID, *p.MinAgePreference, *p.MaxAgePreference)
	}
	return nil
}

func (p *Profile) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Interaction is an immutable like/dislike/skip fact.
type Interaction struct {
	ActorID    int64           `db:"actor_id" json:"actor_id"`
	TargetID   int64           `db:"target_id" json:"target_id"`
	Kind       InteractionKind `db:"kind" json:"kind"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurred_at"`
}

// Match is one side of the relationship between two users. Every pair
// has up to two records: (UserID, MatchedUserID) and its mirror.
type Match struct {
	UserID        int64       `db:"user_id" json:"user_id"`
	MatchedUserID int64       `db:"matched_user_id" json:"matched_user_id"`
	Status        MatchStatus `db:"status" json:"status"`
	Compatibility float64     `db:"compatibility" json:"compatibility"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// PreferenceWeights maps a feature name to its learned weight.
type PreferenceWeights map[string]float64

// Value stores weights as JSONB.
func (w PreferenceWeights) Value() (driver.Value, error) {
	if w == nil {
		return nil, nil
	}
	return json.Marshal(w)
}

// Scan reads weights from a JSONB column.
func (w *PreferenceWeights) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*w = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported weights column type %T", src)
	}
	return json.Unmarshal(data, w)
}

// Clone returns an independent copy.
func (w PreferenceWeights) Clone() PreferenceWeights {
	if w == nil {
		return nil
	}
	out := make(PreferenceWeights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

type ScoredProfile struct {
	Profile Profile            `json:"profile"`
	Score   float64            `json:"score"`
	Factors map[string]float64 `json:"factors,omitempty"`
}

type MatchResult struct {
	Match            *Match `json:"match"`
	IsNewMutualMatch bool   `json:"is_new_mutual_match"`

	// created is false when the like was a repeat of an earlier one
	created bool
	// completedMutual marks a repeat of the like that made the pair mutual
	completedMutual bool
}

type FeedPage struct {
	Items      []ScoredProfile `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// ptr returns a pointer to v.
func ptr[T any](v T) *T {
	return &v
}
