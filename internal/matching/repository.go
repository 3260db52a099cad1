package matching

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"hash/fnv"
	"net"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// WithPairTx runs fn in one transaction holding an advisory lock on the
// unordered pair, so concurrent actions on the same two users serialise.
func (r *postgresRepository) WithPairTx(ctx context.Context, a, b int64, fn func(tx PairTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classifyPostgresError(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, pairLockKey(a, b)); err != nil {
		return classifyPostgresError(err)
	}

	if err := fn(&postgresPairTx{tx: tx}); err != nil {
		return err
	}

	return classifyPostgresError(tx.Commit())
}

// pairLockKey hashes the ordered pair into the advisory lock keyspace.
func pairLockKey(a, b int64) int64 {
	k := newPairKey(a, b)
	h := fnv.New64a()
	fmt.Fprintf(h, "match:%d:%d", k.lo, k.hi)
	return int64(h.Sum64())
}

type postgresPairTx struct {
	tx *sqlx.Tx
}

const matchColumns = `user_id, matched_user_id, status, compatibility, created_at, updated_at`

func (t *postgresPairTx) GetMatch(ctx context.Context, userID, matchedUserID int64) (*Match, error) {
	var m Match
	query := `SELECT ` + matchColumns + ` FROM matches WHERE user_id = $1 AND matched_user_id = $2`

	err := t.tx.GetContext(ctx, &m, query, userID, matchedUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyPostgresError(err)
	}
	return &m, nil
}

func (t *postgresPairTx) PutMatch(ctx context.Context, m *Match) error {
	query := `
		INSERT INTO matches (` + matchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, matched_user_id) DO UPDATE
		SET status = EXCLUDED.status,
		    compatibility = EXCLUDED.compatibility,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := t.tx.ExecContext(ctx, query,
		m.UserID, m.MatchedUserID, m.Status, m.Compatibility, m.CreatedAt, m.UpdatedAt,
	)
	return classifyPostgresError(err)
}

func (t *postgresPairTx) LatestInteraction(ctx context.Context, actorID, targetID int64) (*Interaction, error) {
	var in Interaction
	query := `
		SELECT actor_id, target_id, kind, occurred_at
		FROM interactions
		WHERE actor_id = $1 AND target_id = $2
		ORDER BY occurred_at DESC, id DESC
		LIMIT 1
	`

	err := t.tx.GetContext(ctx, &in, query, actorID, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyPostgresError(err)
	}
	return &in, nil
}

func (t *postgresPairTx) AppendInteraction(ctx context.Context, in Interaction) error {
	query := `
		INSERT INTO interactions (actor_id, target_id, kind, occurred_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := t.tx.ExecContext(ctx, query, in.ActorID, in.TargetID, in.Kind, in.OccurredAt)
	return classifyPostgresError(err)
}

func (r *postgresRepository) GetExclusionSet(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	var ids []int64
	query := `
		SELECT target_id FROM (
			SELECT DISTINCT ON (target_id) target_id, kind
			FROM interactions
			WHERE actor_id = $1
			ORDER BY target_id, occurred_at DESC, id DESC
		) latest
		WHERE kind IN ('DISLIKE', 'SKIP')
		UNION
		SELECT matched_user_id FROM matches WHERE user_id = $1
		UNION
		SELECT user_id FROM matches WHERE matched_user_id = $1
	`

	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, classifyPostgresError(err)
	}

	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *postgresRepository) GetInteractionHistory(ctx context.Context, userID int64, kind InteractionKind, limit int) ([]int64, error) {
	var ids []int64
	query := `
		SELECT target_id
		FROM interactions
		WHERE actor_id = $1 AND kind = $2
		GROUP BY target_id
		ORDER BY MAX(occurred_at) DESC, target_id
		LIMIT $3
	`

	if err := r.db.SelectContext(ctx, &ids, query, userID, kind, limit); err != nil {
		return nil, classifyPostgresError(err)
	}
	return ids, nil
}

func (r *postgresRepository) GetWeights(ctx context.Context, userID int64) (PreferenceWeights, error) {
	var w PreferenceWeights
	query := `SELECT weights FROM preference_weights WHERE user_id = $1`

	err := r.db.QueryRowxContext(ctx, query, userID).Scan(&w)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyPostgresError(err)
	}
	return w, nil
}

func (r *postgresRepository) SaveWeights(ctx context.Context, userID int64, w PreferenceWeights) error {
	query := `
		INSERT INTO preference_weights (user_id, weights, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET weights = EXCLUDED.weights, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, userID, w)
	return classifyPostgresError(err)
}

func (r *postgresRepository) ListMatches(ctx context.Context, userID int64, status MatchStatus) ([]*Match, error) {
	return r.listMatches(ctx, `user_id = $1 AND status = $2`, userID, status)
}

func (r *postgresRepository) ListReceived(ctx context.Context, userID int64, status MatchStatus) ([]*Match, error) {
	return r.listMatches(ctx, `matched_user_id = $1 AND status = $2`, userID, status)
}

func (r *postgresRepository) listMatches(ctx context.Context, where string, args ...interface{}) ([]*Match, error) {
	var matches []*Match
	query := `SELECT ` + matchColumns + ` FROM matches WHERE ` + where +
		` ORDER BY updated_at DESC, user_id, matched_user_id`

	if err := r.db.SelectContext(ctx, &matches, query, args...); err != nil {
		return nil, classifyPostgresError(err)
	}
	return matches, nil
}

// Postgres error codes worth retrying.
var transientPostgresCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

// classifyPostgresError wraps retryable failures in ErrTransientStore.
func classifyPostgresError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if transientPostgresCodes[pqErr.Code] || pqErr.Code.Class() == "08" {
			return fmt.Errorf("%w: %v", ErrTransientStore, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return err
}
