package matching

import (
	"context"
	"time"
)

// InteractionStore is the append-only log of like, dislike and skip events.
type InteractionStore struct {
	repo Repository
}

func NewInteractionStore(repo Repository) *InteractionStore {
	return &InteractionStore{repo: repo}
}

// RecordInteraction appends in. Replaying an entry older than the latest one
// for the same pair fails with ErrConflict; replaying the latest entry is a
// no-op.
func (s *InteractionStore) RecordInteraction(ctx context.Context, in Interaction) error {
	if err := validatePair(in.ActorID, in.TargetID); err != nil {
		return err
	}
	if !in.Kind.Valid() {
		return validationErrorf("unknown interaction kind %q", in.Kind)
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = time.Now()
	}
	in.OccurredAt = in.OccurredAt.UTC().Truncate(time.Microsecond)

	return s.repo.WithPairTx(ctx, in.ActorID, in.TargetID, func(tx PairTx) error {
		latest, err := tx.LatestInteraction(ctx, in.ActorID, in.TargetID)
		if err != nil {
			return err
		}
		return appendInteraction(ctx, tx, latest, in)
	})
}

// GetExclusionSet returns every user that must never be shown to userID again.
func (s *InteractionStore) GetExclusionSet(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	if userID <= 0 {
		return nil, validationErrorf("user id must be positive")
	}
	return s.repo.GetExclusionSet(ctx, userID)
}

// GetInteractionHistory returns distinct targets of kind, most recent first.
func (s *InteractionStore) GetInteractionHistory(ctx context.Context, userID int64, kind InteractionKind, limit int) ([]int64, error) {
	if userID <= 0 {
		return nil, validationErrorf("user id must be positive")
	}
	if !kind.Valid() {
		return nil, validationErrorf("unknown interaction kind %q", kind)
	}
	if limit <= 0 {
		return nil, validationErrorf("history limit must be positive")
	}
	return s.repo.GetInteractionHistory(ctx, userID, kind, limit)
}
