package matching

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStorePairTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()
	boom := errors.New("boom")

	err := repo.WithPairTx(ctx, 1, 2, func(tx PairTx) error {
		if err := tx.AppendInteraction(ctx, Interaction{ActorID: 1, TargetID: 2, Kind: KindLike, OccurredAt: time.Now()}); err != nil {
			return err
		}
		if err := tx.PutMatch(ctx, &Match{UserID: 1, MatchedUserID: 2, Status: StatusPending}); err != nil {
			return err
		}

		// Writes are visible inside the transaction.
		m, err := tx.GetMatch(ctx, 1, 2)
		if err != nil || m == nil {
			t.Errorf("GetMatch inside tx = %v, %v", m, err)
		}
		latest, err := tx.LatestInteraction(ctx, 1, 2)
		if err != nil || latest == nil || latest.Kind != KindLike {
			t.Errorf("LatestInteraction inside tx = %v, %v", latest, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}

	if m := mustGetMatch(t, repo, 1, 2); m != nil {
		t.Errorf("rolled back match is visible: %+v", m)
	}
	excluded, _ := repo.GetExclusionSet(ctx, 1)
	if len(excluded) != 0 {
		t.Errorf("rolled back writes leaked into exclusions: %v", excluded)
	}
}

func TestMemoryStorePairTxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewMemoryStore().WithPairTx(ctx, 1, 2, func(tx PairTx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("callback ran on a cancelled context")
	}
}

func TestMemoryStorePutMatchRequiresStatus(t *testing.T) {
	err := NewMemoryStore().WithPairTx(context.Background(), 1, 2, func(tx PairTx) error {
		return tx.PutMatch(context.Background(), &Match{UserID: 1, MatchedUserID: 2})
	})
	if err == nil {
		t.Error("expected an error for a match without status")
	}
}

func TestMemoryStoreWeights(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()

	w, err := repo.GetWeights(ctx, 1)
	if err != nil || w != nil {
		t.Fatalf("GetWeights for new user = %v, %v, want nil", w, err)
	}

	saved := DefaultWeights()
	if err := repo.SaveWeights(ctx, 1, saved); err != nil {
		t.Fatalf("SaveWeights: %v", err)
	}
	saved[FeatureDistance] = 42

	got, _ := repo.GetWeights(ctx, 1)
	if got[FeatureDistance] != defaultWeight() {
		t.Error("stored weights share memory with the caller")
	}
}

func TestMemoryStoreQueryProfilePool(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()
	for _, p := range []Profile{
		profile(1, 30, "female"),
		profile(5, 25, "male"),
		profile(3, 40, "male"),
		profile(4, 28, "Female"),
		withLocation(profile(2, 29, "male"), 60, 60),
		profile(6, 31, "male"),
	} {
		repo.PutProfile(p)
	}

	box := NewBoundingBox(0, 0, 100)
	hints := PoolHints{
		RequesterID: 1,
		ExcludeIDs:  []int64{6},
		MaxAge:      ptr(35),
		Genders:     []string{"male", "female"},
		Box:         &box,
	}

	got, err := repo.QueryProfilePool(ctx, hints)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []int64{4, 5}; !equalIDs(ids(got), want) {
		t.Errorf("pool = %v, want %v", ids(got), want)
	}

	hints.Limit = 1
	got, _ = repo.QueryProfilePool(ctx, hints)
	if want := []int64{4}; !equalIDs(ids(got), want) {
		t.Errorf("limited pool = %v, want %v", ids(got), want)
	}
}

func TestMemoryStoreGetProfile(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()
	p := profile(1, 30, "female")
	p.Interests = []string{"music"}
	repo.PutProfile(p)

	got, err := repo.GetProfile(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got.Interests[0] = "changed"

	again, _ := repo.GetProfile(ctx, 1)
	if again.Interests[0] != "music" {
		t.Error("GetProfile returned shared slices")
	}

	if _, err := repo.GetProfile(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing profile error = %v, want ErrNotFound", err)
	}

	profiles, _ := repo.GetProfiles(ctx, []int64{99, 1})
	if want := []int64{1}; !equalIDs(ids(profiles), want) {
		t.Errorf("GetProfiles = %v, want %v", ids(profiles), want)
	}
}

func TestMemoryStoreListMatches(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()
	sm := NewStateMachine(repo)
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	sm.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	mustLike(t, sm, 2, 1)
	mustLike(t, sm, 3, 1)
	mustLike(t, sm, 1, 4)

	received, _ := repo.ListReceived(ctx, 1, StatusPending)
	if len(received) != 2 || received[0].UserID != 3 || received[1].UserID != 2 {
		t.Errorf("received = %+v, want likes from 3 then 2", received)
	}

	sent, _ := repo.ListMatches(ctx, 1, StatusPending)
	if len(sent) != 1 || sent[0].MatchedUserID != 4 {
		t.Errorf("sent = %+v, want one like to 4", sent)
	}
}
