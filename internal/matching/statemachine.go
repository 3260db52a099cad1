package matching

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// allowedTransitions lists the legal status changes of one match record.
// StatusNone is the absence of a record.
var allowedTransitions = map[MatchStatus][]MatchStatus{
	StatusNone:    {StatusPending},
	StatusPending: {StatusActive, StatusRejected, StatusUnmatched},
	StatusActive:  {StatusUnmatched},
}

// IsTransitionAllowed reports whether a record may move from one status to another.
func IsTransitionAllowed(from, to MatchStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ParseStatus converts a string to a stored MatchStatus.
func ParseStatus(s string) (MatchStatus, error) {
	switch status := MatchStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case StatusPending, StatusActive, StatusRejected, StatusUnmatched:
		return status, nil
	}
	return StatusNone, validationErrorf("unknown match status %q", s)
}

// StateMachine applies like, skip, dislike and unmatch to the two records
// of a pair inside a single pair transaction.
type StateMachine struct {
	repo Repository
	now  func() time.Time
}

func NewStateMachine(repo Repository) *StateMachine {
	return &StateMachine{repo: repo, now: time.Now}
}

// Like records a LIKE from actor to target. A pending like from the target
// turns both records ACTIVE in the same transaction. Liking again while the
// own record is PENDING or ACTIVE is a no-op.
func (sm *StateMachine) Like(ctx context.Context, actorID, targetID int64, compatibility float64) (*MatchResult, error) {
	if err := validatePair(actorID, targetID); err != nil {
		return nil, err
	}

	var result *MatchResult
	err := sm.repo.WithPairTx(ctx, actorID, targetID, func(tx PairTx) error {
		result = nil

		own, err := tx.GetMatch(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		mirror, err := tx.GetMatch(ctx, targetID, actorID)
		if err != nil {
			return err
		}

		if own != nil {
			switch own.Status {
			case StatusPending, StatusActive:
				result = &MatchResult{Match: own, completedMutual: completedBy(own, mirror)}
				return nil
			default:
				return transitionErrorf("like after %s between %d and %d", own.Status, actorID, targetID)
			}
		}

		if mirror != nil && mirror.Status != StatusPending {
			return transitionErrorf("like while %d's record is %s", targetID, mirror.Status)
		}

		latest, err := tx.LatestInteraction(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		if latest != nil && latest.Kind.excludes() {
			return transitionErrorf("%d already %s %d", actorID, strings.ToLower(string(latest.Kind)), targetID)
		}

		now := sm.timestamp()
		if err := appendInteraction(ctx, tx, latest, Interaction{
			ActorID: actorID, TargetID: targetID, Kind: KindLike, OccurredAt: now,
		}); err != nil {
			return err
		}

		own = &Match{
			UserID:        actorID,
			MatchedUserID: targetID,
			Status:        StatusPending,
			Compatibility: compatibility,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if mirror == nil {
			if err := tx.PutMatch(ctx, own); err != nil {
				return err
			}
			result = &MatchResult{Match: own, created: true}
			return nil
		}

		// Mirror is PENDING: both sides become ACTIVE together.
		own.Status = StatusActive
		mirror.Status = StatusActive
		mirror.UpdatedAt = now
		if err := tx.PutMatch(ctx, own); err != nil {
			return err
		}
		if err := tx.PutMatch(ctx, mirror); err != nil {
			return err
		}
		result = &MatchResult{Match: own, IsNewMutualMatch: true, created: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Skip hides target from actor's feed. Match records are never touched.
func (sm *StateMachine) Skip(ctx context.Context, actorID, targetID int64) error {
	if err := validatePair(actorID, targetID); err != nil {
		return err
	}
	return sm.repo.WithPairTx(ctx, actorID, targetID, func(tx PairTx) error {
		return sm.record(ctx, tx, actorID, targetID, KindSkip)
	})
}

// Dislike records a negative signal. A pending like the target sent to the
// actor is declined in the same transaction.
func (sm *StateMachine) Dislike(ctx context.Context, actorID, targetID int64) error {
	if err := validatePair(actorID, targetID); err != nil {
		return err
	}
	return sm.repo.WithPairTx(ctx, actorID, targetID, func(tx PairTx) error {
		own, err := tx.GetMatch(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		if own != nil && own.Status == StatusActive {
			return transitionErrorf("dislike of active match %d-%d, unmatch instead", actorID, targetID)
		}

		if err := sm.record(ctx, tx, actorID, targetID, KindDislike); err != nil {
			return err
		}

		now := sm.timestamp()
		// Withdraw the actor's own pending like so it cannot turn mutual later.
		if own != nil && own.Status == StatusPending {
			own.Status = StatusUnmatched
			own.UpdatedAt = now
			if err := tx.PutMatch(ctx, own); err != nil {
				return err
			}
		}

		mirror, err := tx.GetMatch(ctx, targetID, actorID)
		if err != nil {
			return err
		}
		if mirror != nil && mirror.Status == StatusPending {
			mirror.Status = StatusRejected
			mirror.UpdatedAt = now
			return tx.PutMatch(ctx, mirror)
		}
		return nil
	})
}

// Unmatch moves every existing record of the pair to UNMATCHED and reports
// whether any record changed.
func (sm *StateMachine) Unmatch(ctx context.Context, actorID, targetID int64) (bool, error) {
	if err := validatePair(actorID, targetID); err != nil {
		return false, err
	}
	var changed []*Match
	err := sm.repo.WithPairTx(ctx, actorID, targetID, func(tx PairTx) error {
		changed = nil
		own, err := tx.GetMatch(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		mirror, err := tx.GetMatch(ctx, targetID, actorID)
		if err != nil {
			return err
		}
		if own == nil && mirror == nil {
			return fmt.Errorf("%w: no match between %d and %d", ErrNotFound, actorID, targetID)
		}

		now := sm.timestamp()
		for _, m := range []*Match{own, mirror} {
			if m == nil || m.Status == StatusUnmatched {
				continue
			}
			if !IsTransitionAllowed(m.Status, StatusUnmatched) {
				return transitionErrorf("unmatch from %s", m.Status)
			}
			m.Status = StatusUnmatched
			m.UpdatedAt = now
			changed = append(changed, m)
		}

		for _, m := range changed {
			if err := tx.PutMatch(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return len(changed) > 0, nil
}

// completedBy reports whether own is the ACTIVE record whose like turned the
// pair mutual: both records were last written by that like.
func completedBy(own, mirror *Match) bool {
	return own.Status == StatusActive && mirror != nil && mirror.Status == StatusActive &&
		own.CreatedAt.Equal(own.UpdatedAt) && mirror.UpdatedAt.Equal(own.UpdatedAt)
}

// timestamp is truncated to the precision Postgres stores.
func (sm *StateMachine) timestamp() time.Time {
	return sm.now().UTC().Truncate(time.Microsecond)
}

func (sm *StateMachine) record(ctx context.Context, tx PairTx, actorID, targetID int64, kind InteractionKind) error {
	latest, err := tx.LatestInteraction(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	return appendInteraction(ctx, tx, latest, Interaction{
		ActorID: actorID, TargetID: targetID, Kind: kind, OccurredAt: sm.timestamp(),
	})
}

// appendInteraction enforces last-write-wins ordering against latest. An
// entry older than latest is a conflict; an exact replay is dropped.
func appendInteraction(ctx context.Context, tx PairTx, latest *Interaction, in Interaction) error {
	if latest != nil {
		if in.OccurredAt.Before(latest.OccurredAt) {
			return fmt.Errorf("%w: %s at %s is older than %s at %s", ErrConflict,
				in.Kind, in.OccurredAt.Format(time.RFC3339Nano),
				latest.Kind, latest.OccurredAt.Format(time.RFC3339Nano))
		}
		if in.OccurredAt.Equal(latest.OccurredAt) && in.Kind == latest.Kind {
			return nil
		}
	}
	return tx.AppendInteraction(ctx, in)
}

func validatePair(actorID, targetID int64) error {
	if actorID <= 0 || targetID <= 0 {
		return validationErrorf("user ids must be positive")
	}
	if actorID == targetID {
		return validationErrorf("user %d cannot act on themselves", actorID)
	}
	return nil
}
