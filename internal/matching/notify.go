package matching

import (
	"context"
	"errors"
	"time"
)

// MatchEvent announces a new mutual match.
type MatchEvent struct {
	UserID        int64     `json:"user_id"`
	MatchedUserID int64     `json:"matched_user_id"`
	Compatibility float64   `json:"compatibility"`
	MatchedAt     time.Time `json:"matched_at"`
}

// NotificationSink delivers match events. Delivery is best effort; the
// match is already committed when a sink is called.
type NotificationSink interface {
	NotifyMutualMatch(ctx context.Context, event MatchEvent) error
}

type NoopSink struct{}

func (NoopSink) NotifyMutualMatch(ctx context.Context, event MatchEvent) error {
	return nil
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []NotificationSink

func (m MultiSink) NotifyMutualMatch(ctx context.Context, event MatchEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.NotifyMutualMatch(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
