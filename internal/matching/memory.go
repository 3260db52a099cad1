package matching

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type pairKey struct{ lo, hi int64 }

func newPairKey(a, b int64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

type matchKey struct{ userID, matchedUserID int64 }

type storedInteraction struct {
	Interaction
	seq int64
}

// MemoryStore is an in-process Repository and ProfileSource. Pair
// transactions serialise on a per-pair mutex and buffer their writes until
// the callback succeeds.
type MemoryStore struct {
	mu           sync.RWMutex
	profiles     map[int64]Profile
	interactions []storedInteraction
	matches      map[matchKey]Match
	weights      map[int64]PreferenceWeights
	seq          int64

	locksMu sync.Mutex
	locks   map[pairKey]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[int64]Profile),
		matches:  make(map[matchKey]Match),
		weights:  make(map[int64]PreferenceWeights),
		locks:    make(map[pairKey]*sync.Mutex),
	}
}

// PutProfile inserts or replaces a profile.
func (s *MemoryStore) PutProfile(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = cloneProfile(p)
}

func (s *MemoryStore) pairLock(a, b int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	key := newPairKey(a, b)
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *MemoryStore) WithPairTx(ctx context.Context, a, b int64, fn func(tx PairTx) error) error {
	l := s.pairLock(a, b)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryPairTx{store: s, matches: make(map[matchKey]Match)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, m := range tx.matches {
		s.matches[k] = m
	}
	for _, in := range tx.interactions {
		s.seq++
		s.interactions = append(s.interactions, storedInteraction{Interaction: in, seq: s.seq})
	}
	return nil
}

type memoryPairTx struct {
	store        *MemoryStore
	matches      map[matchKey]Match
	interactions []Interaction
}

func (tx *memoryPairTx) GetMatch(ctx context.Context, userID, matchedUserID int64) (*Match, error) {
	key := matchKey{userID, matchedUserID}
	if m, ok := tx.matches[key]; ok {
		return &m, nil
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	if m, ok := tx.store.matches[key]; ok {
		return &m, nil
	}
	return nil, nil
}

func (tx *memoryPairTx) PutMatch(ctx context.Context, m *Match) error {
	if m.Status == StatusNone {
		return fmt.Errorf("match %d-%d has no status", m.UserID, m.MatchedUserID)
	}
	tx.matches[matchKey{m.UserID, m.MatchedUserID}] = *m
	return nil
}

func (tx *memoryPairTx) LatestInteraction(ctx context.Context, actorID, targetID int64) (*Interaction, error) {
	var latest *Interaction
	for i := range tx.interactions {
		in := tx.interactions[i]
		if in.ActorID == actorID && in.TargetID == targetID {
			latest = &in
		}
	}
	if latest != nil {
		return latest, nil
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	if in, ok := tx.store.latestLocked(actorID, targetID); ok {
		return &in, nil
	}
	return nil, nil
}

func (tx *memoryPairTx) AppendInteraction(ctx context.Context, in Interaction) error {
	tx.interactions = append(tx.interactions, in)
	return nil
}

// latestLocked orders by timestamp, then insertion order. Caller holds mu.
func (s *MemoryStore) latestLocked(actorID, targetID int64) (Interaction, bool) {
	var best *storedInteraction
	for i := range s.interactions {
		in := &s.interactions[i]
		if in.ActorID != actorID || in.TargetID != targetID {
			continue
		}
		if best == nil || !in.OccurredAt.Before(best.OccurredAt) {
			best = in
		}
	}
	if best == nil {
		return Interaction{}, false
	}
	return best.Interaction, true
}

func (s *MemoryStore) GetExclusionSet(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[int64]storedInteraction)
	for _, in := range s.interactions {
		if in.ActorID != userID {
			continue
		}
		if cur, ok := latest[in.TargetID]; !ok || !in.OccurredAt.Before(cur.OccurredAt) {
			latest[in.TargetID] = in
		}
	}

	out := make(map[int64]struct{})
	for target, in := range latest {
		if in.Kind.excludes() {
			out[target] = struct{}{}
		}
	}
	for k := range s.matches {
		switch userID {
		case k.userID:
			out[k.matchedUserID] = struct{}{}
		case k.matchedUserID:
			out[k.userID] = struct{}{}
		}
	}
	return out, nil
}

func (s *MemoryStore) GetInteractionHistory(ctx context.Context, userID int64, kind InteractionKind, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		target int64
		last   storedInteraction
	}
	byTarget := make(map[int64]*entry)
	for _, in := range s.interactions {
		if in.ActorID != userID || in.Kind != kind {
			continue
		}
		e, ok := byTarget[in.TargetID]
		if !ok {
			byTarget[in.TargetID] = &entry{target: in.TargetID, last: in}
			continue
		}
		if !in.OccurredAt.Before(e.last.OccurredAt) {
			e.last = in
		}
	}

	entries := make([]*entry, 0, len(byTarget))
	for _, e := range byTarget {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].last, entries[j].last
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.After(b.OccurredAt)
		}
		return entries[i].target < entries[j].target
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.target
	}
	return out, nil
}

func (s *MemoryStore) GetWeights(ctx context.Context, userID int64) (PreferenceWeights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weights[userID].Clone(), nil
}

func (s *MemoryStore) SaveWeights(ctx context.Context, userID int64, w PreferenceWeights) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights[userID] = w.Clone()
	return nil
}

func (s *MemoryStore) ListMatches(ctx context.Context, userID int64, status MatchStatus) ([]*Match, error) {
	return s.listMatches(func(m Match) bool { return m.UserID == userID && m.Status == status }), nil
}

func (s *MemoryStore) ListReceived(ctx context.Context, userID int64, status MatchStatus) ([]*Match, error) {
	return s.listMatches(func(m Match) bool { return m.MatchedUserID == userID && m.Status == status }), nil
}

// listMatches returns matches newest first.
func (s *MemoryStore) listMatches(keep func(Match) bool) []*Match {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Match
	for _, m := range s.matches {
		if keep(m) {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].MatchedUserID < out[j].MatchedUserID
	})
	return out
}

func (s *MemoryStore) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: profile %d", ErrNotFound, id)
	}
	p = cloneProfile(p)
	return &p, nil
}

func (s *MemoryStore) GetProfiles(ctx context.Context, ids []int64) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out = append(out, cloneProfile(p))
		}
	}
	return out, nil
}

// QueryProfilePool mirrors the Postgres pool query: ordered by id, limited.
func (s *MemoryStore) QueryProfilePool(ctx context.Context, hints PoolHints) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excluded := make(map[int64]struct{}, len(hints.ExcludeIDs))
	for _, id := range hints.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	out := make([]Profile, 0)
	for id, p := range s.profiles {
		if id == hints.RequesterID {
			continue
		}
		if _, ok := excluded[id]; ok {
			continue
		}
		if !ageInRange(p.Age, hints.MinAge, hints.MaxAge) {
			continue
		}
		if len(hints.Genders) > 0 && !containsTag(hints.Genders, p.GenderIdentity) {
			continue
		}
		if hints.Box != nil && p.HasLocation() && !hints.Box.Contains(*p.Latitude, *p.Longitude) {
			continue
		}
		out = append(out, cloneProfile(p))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if hints.Limit > 0 && len(out) > hints.Limit {
		out = out[:hints.Limit]
	}
	return out, nil
}

func containsTag(tags []string, v string) bool {
	v = normalizeTag(v)
	for _, t := range tags {
		if t == v {
			return true
		}
	}
	return false
}

func cloneProfile(p Profile) Profile {
	p.GenderPreferences = append([]string(nil), p.GenderPreferences...)
	p.Interests = append([]string(nil), p.Interests...)
	p.LookingFor = append([]string(nil), p.LookingFor...)
	if p.Latitude != nil {
		p.Latitude = ptr(*p.Latitude)
	}
	if p.Longitude != nil {
		p.Longitude = ptr(*p.Longitude)
	}
	if p.MinAgePreference != nil {
		p.MinAgePreference = ptr(*p.MinAgePreference)
	}
	if p.MaxAgePreference != nil {
		p.MaxAgePreference = ptr(*p.MaxAgePreference)
	}
	if p.MaxDistanceKm != nil {
		p.MaxDistanceKm = ptr(*p.MaxDistanceKm)
	}
	return p
}
