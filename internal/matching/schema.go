package matching

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var migrations = []string{
	// Read model of profiles, fed by the profile service
	`CREATE TABLE IF NOT EXISTS profiles (
		id BIGINT PRIMARY KEY,
		age INTEGER NOT NULL,
		gender_identity VARCHAR(50) NOT NULL DEFAULT '',
		gender_preferences TEXT[] NOT NULL DEFAULT '{}',
		interests TEXT[] NOT NULL DEFAULT '{}',
		looking_for TEXT[] NOT NULL DEFAULT '{}',
		verification_level INTEGER NOT NULL DEFAULT 0,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		min_age_preference INTEGER,
		max_age_preference INTEGER,
		max_distance_km DOUBLE PRECISION,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_age ON profiles(age)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_location ON profiles(latitude, longitude)`,

	// Append-only interaction log
	`CREATE TABLE IF NOT EXISTS interactions (
		id BIGSERIAL PRIMARY KEY,
		actor_id BIGINT NOT NULL,
		target_id BIGINT NOT NULL,
		kind VARCHAR(10) NOT NULL CHECK (kind IN ('LIKE', 'DISLIKE', 'SKIP')),
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_pair ON interactions(actor_id, target_id, occurred_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_kind ON interactions(actor_id, kind, occurred_at DESC)`,

	// One row per side of a match
	`CREATE TABLE IF NOT EXISTS matches (
		user_id BIGINT NOT NULL,
		matched_user_id BIGINT NOT NULL,
		status VARCHAR(10) NOT NULL CHECK (status IN ('PENDING', 'ACTIVE', 'REJECTED', 'UNMATCHED')),
		compatibility DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, matched_user_id),
		CHECK (user_id <> matched_user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_matched_user ON matches(matched_user_id, status)`,

	`CREATE TABLE IF NOT EXISTS preference_weights (
		user_id BIGINT PRIMARY KEY,
		weights JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the matching tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
