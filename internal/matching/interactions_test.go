package matching

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecordInteractionOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()
	store := NewInteractionStore(repo)
	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	if err := store.RecordInteraction(ctx, Interaction{ActorID: 1, TargetID: 2, Kind: KindLike, OccurredAt: t0}); err != nil {
		t.Fatalf("first record: %v", err)
	}

	tests := []struct {
		name    string
		in      Interaction
		wantErr error
	}{
		{"older entry conflicts", Interaction{ActorID: 1, TargetID: 2, Kind: KindSkip, OccurredAt: t0.Add(-time.Second)}, ErrConflict},
		{"exact replay is accepted", Interaction{ActorID: 1, TargetID: 2, Kind: KindLike, OccurredAt: t0}, nil},
		{"same time different kind appends", Interaction{ActorID: 1, TargetID: 2, Kind: KindSkip, OccurredAt: t0}, nil},
		{"newer entry appends", Interaction{ActorID: 1, TargetID: 2, Kind: KindDislike, OccurredAt: t0.Add(time.Minute)}, nil},
		{"other direction is independent", Interaction{ActorID: 2, TargetID: 1, Kind: KindLike, OccurredAt: t0.Add(-time.Hour)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.RecordInteraction(ctx, tt.in)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	repo.mu.RLock()
	n := len(repo.interactions)
	repo.mu.RUnlock()
	if n != 4 {
		t.Errorf("stored %d interactions, want 4", n)
	}

	excluded, err := store.GetExclusionSet(ctx, 1)
	if err != nil {
		t.Fatalf("GetExclusionSet: %v", err)
	}
	if _, ok := excluded[2]; !ok {
		t.Error("latest DISLIKE should exclude user 2")
	}
}

func TestRecordInteractionSameTimestampUsesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()
	store := NewInteractionStore(repo)
	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	for _, kind := range []InteractionKind{KindSkip, KindLike} {
		if err := store.RecordInteraction(ctx, Interaction{ActorID: 1, TargetID: 2, Kind: kind, OccurredAt: t0}); err != nil {
			t.Fatalf("record %s: %v", kind, err)
		}
	}

	excluded, _ := store.GetExclusionSet(ctx, 1)
	if _, ok := excluded[2]; ok {
		t.Error("the later LIKE should win over the SKIP at the same instant")
	}
}

func TestRecordInteractionValidation(t *testing.T) {
	store := NewInteractionStore(NewMemoryStore())
	bad := []Interaction{
		{ActorID: 1, TargetID: 1, Kind: KindLike},
		{ActorID: 0, TargetID: 2, Kind: KindLike},
		{ActorID: 1, TargetID: 2, Kind: "SUPERLIKE"},
	}
	for _, in := range bad {
		if err := store.RecordInteraction(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Errorf("RecordInteraction(%+v) error = %v, want ErrValidation", in, err)
		}
	}
}

func TestGetInteractionHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()
	store := NewInteractionStore(repo)
	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	record := func(target int64, kind InteractionKind, offset time.Duration) {
		t.Helper()
		in := Interaction{ActorID: 1, TargetID: target, Kind: kind, OccurredAt: t0.Add(offset)}
		if err := store.RecordInteraction(ctx, in); err != nil {
			t.Fatalf("record %+v: %v", in, err)
		}
	}
	record(2, KindLike, 0)
	record(3, KindLike, time.Minute)
	record(4, KindDislike, 2*time.Minute)
	record(5, KindLike, 3*time.Minute)
	record(2, KindSkip, 4*time.Minute)

	got, err := store.GetInteractionHistory(ctx, 1, KindLike, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []int64{5, 3, 2}; !equalIDs(got, want) {
		t.Errorf("likes = %v, want %v", got, want)
	}

	got, _ = store.GetInteractionHistory(ctx, 1, KindLike, 2)
	if want := []int64{5, 3}; !equalIDs(got, want) {
		t.Errorf("limited likes = %v, want %v", got, want)
	}

	if _, err := store.GetInteractionHistory(ctx, 1, KindLike, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("zero limit error = %v, want ErrValidation", err)
	}
	if _, err := store.GetInteractionHistory(ctx, 1, "POKE", 5); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown kind error = %v, want ErrValidation", err)
	}
}

func TestExclusionSetCoversMatchesInBothDirections(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()
	sm := NewStateMachine(repo)
	store := NewInteractionStore(repo)

	mustLike(t, sm, 1, 2) // A's pending like
	mustLike(t, sm, 3, 1) // like received by A
	mustLike(t, sm, 1, 4)
	mustLike(t, sm, 4, 1) // active
	if err := sm.Skip(ctx, 1, 5); err != nil {
		t.Fatal(err)
	}
	if err := sm.Dislike(ctx, 6, 1); err != nil { // only excludes A for 6
		t.Fatal(err)
	}

	excluded, err := store.GetExclusionSet(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []int64{2, 3, 4, 5} {
		if _, ok := excluded[id]; !ok {
			t.Errorf("user %d missing from exclusion set %v", id, excluded)
		}
	}
	if _, ok := excluded[6]; ok {
		t.Error("a dislike received from user 6 should not exclude them")
	}

	if _, err := store.GetExclusionSet(ctx, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("invalid user error = %v, want ErrValidation", err)
	}
}
