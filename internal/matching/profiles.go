package matching

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type postgresProfileSource struct {
	db *sqlx.DB
}

func NewPostgresProfileSource(db *sqlx.DB) ProfileSource {
	return &postgresProfileSource{db: db}
}

const profileColumns = `
	id, age, gender_identity, gender_preferences, interests, looking_for,
	verification_level, latitude, longitude,
	min_age_preference, max_age_preference, max_distance_km
`

func (s *postgresProfileSource) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	var p Profile
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	err := s.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, classifyPostgresError(err)
	}
	return &p, nil
}

func (s *postgresProfileSource) GetProfiles(ctx context.Context, ids []int64) ([]Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var profiles []Profile
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ANY($1) ORDER BY id`

	if err := s.db.SelectContext(ctx, &profiles, query, pq.Array(ids)); err != nil {
		return nil, classifyPostgresError(err)
	}
	return profiles, nil
}

// QueryProfilePool applies the coarse storage-level hints. Profiles without
// coordinates always pass the bounding box.
func (s *postgresProfileSource) QueryProfilePool(ctx context.Context, hints PoolHints) ([]Profile, error) {
	var minLat, maxLat, minLon, maxLon *float64
	if hints.Box != nil {
		minLat, maxLat = &hints.Box.MinLat, &hints.Box.MaxLat
		minLon, maxLon = &hints.Box.MinLon, &hints.Box.MaxLon
	}

	exclude := hints.ExcludeIDs
	if exclude == nil {
		exclude = []int64{}
	}
	genders := hints.Genders
	if genders == nil {
		genders = []string{}
	}
	// LIMIT NULL means no limit
	var limit *int
	if hints.Limit > 0 {
		limit = &hints.Limit
	}

	var profiles []Profile
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE id <> $1
		  AND NOT (id = ANY($2::bigint[]))
		  AND ($3::int IS NULL OR age >= $3)
		  AND ($4::int IS NULL OR age <= $4)
		  AND (cardinality($5::text[]) = 0 OR lower(gender_identity) = ANY($5::text[]))
		  AND ($6::float8 IS NULL OR latitude IS NULL OR longitude IS NULL
		       OR (latitude BETWEEN $6 AND $7 AND longitude BETWEEN $8 AND $9))
		ORDER BY id
		LIMIT $10
	`

	err := s.db.SelectContext(ctx, &profiles, query,
		hints.RequesterID, pq.Array(exclude), hints.MinAge, hints.MaxAge, pq.Array(genders),
		minLat, maxLat, minLon, maxLon, limit,
	)
	if err != nil {
		return nil, classifyPostgresError(err)
	}
	return profiles, nil
}

// UpsertProfiles writes profiles into the read model, replacing existing rows.
func UpsertProfiles(ctx context.Context, db *sqlx.DB, profiles []Profile) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return classifyPostgresError(err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO profiles (` + profileColumns + `, updated_at)
		VALUES (:id, :age, :gender_identity, :gender_preferences, :interests, :looking_for,
		        :verification_level, :latitude, :longitude,
		        :min_age_preference, :max_age_preference, :max_distance_km, NOW())
		ON CONFLICT (id) DO UPDATE SET
			age = EXCLUDED.age,
			gender_identity = EXCLUDED.gender_identity,
			gender_preferences = EXCLUDED.gender_preferences,
			interests = EXCLUDED.interests,
			looking_for = EXCLUDED.looking_for,
			verification_level = EXCLUDED.verification_level,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			min_age_preference = EXCLUDED.min_age_preference,
			max_age_preference = EXCLUDED.max_age_preference,
			max_distance_km = EXCLUDED.max_distance_km,
			updated_at = EXCLUDED.updated_at
	`

	for i := range profiles {
		p := profiles[i]
		if err := p.Validate(); err != nil {
			return err
		}
		// nil arrays encode as NULL; the columns are NOT NULL
		p.GenderPreferences = nonNilTags(p.GenderPreferences)
		p.Interests = nonNilTags(p.Interests)
		p.LookingFor = nonNilTags(p.LookingFor)

		if _, err := tx.NamedExecContext(ctx, query, &p); err != nil {
			return classifyPostgresError(err)
		}
	}

	return classifyPostgresError(tx.Commit())
}

func nonNilTags(tags pq.StringArray) pq.StringArray {
	if tags == nil {
		return pq.StringArray{}
	}
	return tags
}
