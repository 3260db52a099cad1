package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// profile builds a valid profile with no constraints.
func profile(id int64, age int, gender string) Profile {
	return Profile{ID: id, Age: age, GenderIdentity: gender}
}

func withAgeRange(p Profile, min, max int) Profile {
	p.MinAgePreference = ptr(min)
	p.MaxAgePreference = ptr(max)
	return p
}

func withLocation(p Profile, lat, lon float64) Profile {
	p.Latitude = ptr(lat)
	p.Longitude = ptr(lon)
	return p
}

func withMaxDistance(p Profile, km float64) Profile {
	p.MaxDistanceKm = ptr(km)
	return p
}

func ids(profiles []Profile) []int64 {
	out := make([]int64, len(profiles))
	for i, p := range profiles {
		out[i] = p.ID
	}
	return out
}

func scoredIDs(items []ScoredProfile) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.Profile.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// fastRetry keeps retry tests quick.
var fastRetry = RetryConfig{
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	MaxElapsedTime:  time.Second,
}

// flakyRepo fails the first n pair transactions with a transient error.
type flakyRepo struct {
	Repository
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyRepo) WithPairTx(ctx context.Context, a, b int64, fn func(tx PairTx) error) error {
	f.mu.Lock()
	f.calls++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	if fail {
		return errors.Join(ErrTransientStore, errors.New("connection reset"))
	}
	return f.Repository.WithPairTx(ctx, a, b, fn)
}

// lostAckRepo commits the first n pair transactions and then reports a
// transient error, as when the connection drops after COMMIT.
type lostAckRepo struct {
	Repository
	mu   sync.Mutex
	lost int
}

func (l *lostAckRepo) WithPairTx(ctx context.Context, a, b int64, fn func(tx PairTx) error) error {
	if err := l.Repository.WithPairTx(ctx, a, b, fn); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lost > 0 {
		l.lost--
		return errors.Join(ErrTransientStore, errors.New("connection reset after commit"))
	}
	return nil
}

// recordingSink captures notifications.
type recordingSink struct {
	mu     sync.Mutex
	events []MatchEvent
	err    error
}

func (r *recordingSink) NotifyMutualMatch(ctx context.Context, event MatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestService(t *testing.T, repo Repository, profiles ProfileSource, sink NotificationSink) *service {
	t.Helper()
	opts := DefaultOptions()
	opts.Retry = fastRetry
	svc, err := NewService(repo, profiles, NewMemoryFeedCache(), sink, opts)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc.(*service)
}

func mustGetMatch(t *testing.T, repo Repository, userID, matchedUserID int64) *Match {
	t.Helper()
	var m *Match
	err := repo.WithPairTx(context.Background(), userID, matchedUserID, func(tx PairTx) (err error) {
		m, err = tx.GetMatch(context.Background(), userID, matchedUserID)
		return err
	})
	if err != nil {
		t.Fatalf("GetMatch(%d, %d): %v", userID, matchedUserID, err)
	}
	return m
}
