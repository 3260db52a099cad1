// internal/matching/service.go

package matching

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/imadgeboyega/kiekky-matchmaker/internal/common/logging"
)

type Service interface {
	// Discovery
	GetPotentialMatches(ctx context.Context, userID int64, pageSize int, cursor string) (*FeedPage, error)

	// Interactions
	LikeUser(ctx context.Context, userID, targetID int64) (*MatchResult, error)
	SkipUser(ctx context.Context, userID, targetID int64) error
	DislikeUser(ctx context.Context, userID, targetID int64) error
	UnmatchUser(ctx context.Context, userID, targetID int64) error

	// Matches
	GetMatches(ctx context.Context, userID int64) ([]*Match, error)
	GetReceivedLikes(ctx context.Context, userID int64) ([]*Match, error)

	// Learning
	RefreshWeights(ctx context.Context, userID int64) (PreferenceWeights, error)
}

// Options tune the engine. Zero values are replaced by DefaultOptions.
type Options struct {
	LearningRate  float64
	WeightClipMin float64
	WeightClipMax float64
	HistoryLimit  int

	PoolLimit            int
	DefaultPageSize      int
	MaxPageSize          int
	SnapshotTTL          time.Duration
	DefaultMaxDistanceKm float64

	Retry RetryConfig
}

func DefaultOptions() Options {
	return Options{
		LearningRate:         DefaultLearningRate,
		WeightClipMin:        DefaultWeightClipMin,
		WeightClipMax:        DefaultWeightClipMax,
		HistoryLimit:         200,
		PoolLimit:            1000,
		DefaultPageSize:      20,
		MaxPageSize:          100,
		SnapshotTTL:          15 * time.Minute,
		DefaultMaxDistanceKm: fallbackMaxDistanceKm,
		Retry:                DefaultRetryConfig(),
	}
}

type service struct {
	repo     Repository
	profiles ProfileSource
	feeds    FeedCache
	notifier NotificationSink

	stateMachine *StateMachine
	learner      *Learner
	scorer       *Scorer
	opts         Options
	log          zerolog.Logger
}

func NewService(repo Repository, profiles ProfileSource, feeds FeedCache, notifier NotificationSink, opts Options) (Service, error) {
	opts = opts.withDefaults()

	extractor := FeatureExtractor{DefaultMaxDistanceKm: opts.DefaultMaxDistanceKm}
	learner, err := NewLearner(opts.LearningRate, opts.WeightClipMin, opts.WeightClipMax, extractor)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = NoopSink{}
	}

	return &service{
		repo:         repo,
		profiles:     profiles,
		feeds:        feeds,
		notifier:     notifier,
		stateMachine: NewStateMachine(repo),
		learner:      learner,
		scorer:       NewScorer(extractor),
		opts:         opts,
		log:          logging.Component("matching"),
	}, nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LearningRate == 0 {
		o.LearningRate = d.LearningRate
	}
	if o.WeightClipMin == 0 && o.WeightClipMax == 0 {
		o.WeightClipMin, o.WeightClipMax = d.WeightClipMin, d.WeightClipMax
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = d.HistoryLimit
	}
	if o.PoolLimit <= 0 {
		o.PoolLimit = d.PoolLimit
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = d.MaxPageSize
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = d.DefaultPageSize
	}
	if o.DefaultPageSize > o.MaxPageSize {
		o.DefaultPageSize = o.MaxPageSize
	}
	if o.SnapshotTTL <= 0 {
		o.SnapshotTTL = d.SnapshotTTL
	}
	if o.DefaultMaxDistanceKm <= 0 {
		o.DefaultMaxDistanceKm = d.DefaultMaxDistanceKm
	}
	if o.Retry.InitialInterval <= 0 {
		o.Retry = d.Retry
	}
	return o
}

// ── Discovery ──

// GetPotentialMatches returns one page of the ranked feed. An empty cursor
// builds and snapshots a fresh ranking; a cursor continues that snapshot.
// Every page is re-checked against the current exclusion set.
func (s *service) GetPotentialMatches(ctx context.Context, userID int64, pageSize int, cursor string) (*FeedPage, error) {
	if userID <= 0 {
		return nil, validationErrorf("user id must be positive")
	}
	pageSize = s.clampPageSize(pageSize)

	if cursor == "" {
		return s.freshFeed(ctx, userID, pageSize)
	}

	token, offset, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	var snap *FeedSnapshot
	if err := withRetry(ctx, s.opts.Retry, "feed_load", func() (err error) {
		snap, err = s.feeds.Load(ctx, token)
		return err
	}); err != nil {
		return nil, err
	}
	if snap.UserID != userID {
		return nil, ErrCursorExpired
	}

	exclusions, err := s.exclusions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pageFrom(snap, token, offset, pageSize, exclusions), nil
}

func (s *service) freshFeed(ctx context.Context, userID int64, pageSize int) (*FeedPage, error) {
	start := time.Now()

	var (
		requester  *Profile
		exclusions map[int64]struct{}
		weights    PreferenceWeights
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		requester, err = s.profile(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		exclusions, err = s.exclusions(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		weights, err = s.weights(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := requester.Validate(); err != nil {
		return nil, err
	}

	var pool []Profile
	hints := poolHints(requester, exclusions, s.opts.PoolLimit)
	if err := withRetry(ctx, s.opts.Retry, "profile_pool", func() (err error) {
		pool, err = s.profiles.QueryProfilePool(ctx, hints)
		return err
	}); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates, err := FilterCandidates(requester, pool, exclusions)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ranked := s.scorer.RankCandidates(requester, candidates, weights)

	snap := &FeedSnapshot{UserID: userID, Items: ranked, CreatedAt: time.Now().UTC()}
	var token string
	if err := withRetry(ctx, s.opts.Retry, "feed_save", func() (err error) {
		token, err = s.feeds.Save(ctx, snap, s.opts.SnapshotTTL)
		return err
	}); err != nil {
		return nil, err
	}

	recordFeedBuild(time.Since(start))
	s.log.Debug().
		Int64("user_id", userID).
		Int("pool", len(pool)).
		Int("candidates", len(ranked)).
		Dur("took", time.Since(start)).
		Msg("feed built")

	return pageFrom(snap, token, 0, pageSize, exclusions), nil
}

// pageFrom walks the snapshot from offset, skipping excluded profiles, until
// pageSize items are collected.
func pageFrom(snap *FeedSnapshot, token string, offset, pageSize int, exclusions map[int64]struct{}) *FeedPage {
	page := &FeedPage{Items: make([]ScoredProfile, 0, pageSize)}

	i := offset
	for ; i < len(snap.Items) && len(page.Items) < pageSize; i++ {
		item := snap.Items[i]
		if _, ok := exclusions[item.Profile.ID]; ok {
			continue
		}
		page.Items = append(page.Items, item)
		recordCompatibilityScore(item.Score)
	}

	if i < len(snap.Items) {
		page.NextCursor = encodeCursor(token, i)
	}
	return page
}

func (s *service) clampPageSize(pageSize int) int {
	if pageSize <= 0 {
		return s.opts.DefaultPageSize
	}
	if pageSize > s.opts.MaxPageSize {
		return s.opts.MaxPageSize
	}
	return pageSize
}

// ── Interactions ──

func (s *service) LikeUser(ctx context.Context, userID, targetID int64) (*MatchResult, error) {
	if err := validatePair(userID, targetID); err != nil {
		return nil, err
	}

	actor, target, err := s.pair(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}

	weights, err := s.weights(ctx, userID)
	if err != nil {
		return nil, err
	}
	compatibility, _ := s.scorer.Score(actor, target, weights)

	var (
		result   *MatchResult
		attempts int
	)
	if err := withRetry(ctx, s.opts.Retry, "like", func() (err error) {
		attempts++
		result, err = s.stateMachine.Like(ctx, userID, targetID, compatibility)
		return err
	}); err != nil {
		return nil, err
	}
	// A failed attempt may still have committed; its mutual match must not be lost.
	if attempts > 1 && result.completedMutual && !result.IsNewMutualMatch {
		result.IsNewMutualMatch = true
		result.created = true
	}

	switch {
	case result.IsNewMutualMatch:
		recordLikeOutcome("mutual")
		recordMutualMatch()
		s.notify(ctx, result.Match)
	case result.created:
		recordLikeOutcome("pending")
	default:
		recordLikeOutcome("noop")
		return result, nil
	}
	recordInteraction(KindLike)

	s.refreshAfterInteraction(ctx, userID)
	return result, nil
}

func (s *service) SkipUser(ctx context.Context, userID, targetID int64) error {
	if err := validatePair(userID, targetID); err != nil {
		return err
	}
	if _, err := s.profile(ctx, targetID); err != nil {
		return err
	}

	if err := withRetry(ctx, s.opts.Retry, "skip", func() error {
		return s.stateMachine.Skip(ctx, userID, targetID)
	}); err != nil {
		return err
	}

	recordInteraction(KindSkip)
	return nil
}

func (s *service) DislikeUser(ctx context.Context, userID, targetID int64) error {
	if err := validatePair(userID, targetID); err != nil {
		return err
	}
	if _, err := s.profile(ctx, targetID); err != nil {
		return err
	}

	if err := withRetry(ctx, s.opts.Retry, "dislike", func() error {
		return s.stateMachine.Dislike(ctx, userID, targetID)
	}); err != nil {
		return err
	}

	recordInteraction(KindDislike)
	s.refreshAfterInteraction(ctx, userID)
	return nil
}

func (s *service) UnmatchUser(ctx context.Context, userID, targetID int64) error {
	if err := validatePair(userID, targetID); err != nil {
		return err
	}

	var changed bool
	if err := withRetry(ctx, s.opts.Retry, "unmatch", func() error {
		applied, err := s.stateMachine.Unmatch(ctx, userID, targetID)
		changed = changed || applied
		return err
	}); err != nil {
		return err
	}

	if changed {
		recordUnmatch()
	}
	return nil
}

// ── Matches ──

func (s *service) GetMatches(ctx context.Context, userID int64) ([]*Match, error) {
	if userID <= 0 {
		return nil, validationErrorf("user id must be positive")
	}
	var matches []*Match
	err := withRetry(ctx, s.opts.Retry, "list_matches", func() (err error) {
		matches, err = s.repo.ListMatches(ctx, userID, StatusActive)
		return err
	})
	return matches, err
}

// GetReceivedLikes lists pending likes other users sent to userID.
func (s *service) GetReceivedLikes(ctx context.Context, userID int64) ([]*Match, error) {
	if userID <= 0 {
		return nil, validationErrorf("user id must be positive")
	}
	var likes []*Match
	err := withRetry(ctx, s.opts.Retry, "list_received", func() (err error) {
		likes, err = s.repo.ListReceived(ctx, userID, StatusPending)
		return err
	})
	return likes, err
}

// ── Learning ──

// RefreshWeights re-learns userID's weights from the recent like and dislike
// history and persists them. SKIP is not a training signal.
func (s *service) RefreshWeights(ctx context.Context, userID int64) (PreferenceWeights, error) {
	user, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	prior, err := s.weights(ctx, userID)
	if err != nil {
		return nil, err
	}

	liked, err := s.history(ctx, userID, KindLike)
	if err != nil {
		return nil, err
	}
	disliked, err := s.history(ctx, userID, KindDislike)
	if err != nil {
		return nil, err
	}

	next, err := s.learner.ComputeWeights(user, liked, disliked, prior)
	if err != nil {
		return nil, err
	}

	if err := withRetry(ctx, s.opts.Retry, "save_weights", func() error {
		return s.repo.SaveWeights(ctx, userID, next)
	}); err != nil {
		return nil, err
	}
	return next, nil
}

// refreshAfterInteraction keeps weights current. The interaction is already
// committed, so failures are only logged.
func (s *service) refreshAfterInteraction(ctx context.Context, userID int64) {
	if _, err := s.RefreshWeights(ctx, userID); err != nil {
		recordWeightRefreshFailure()
		logging.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("failed to refresh preference weights")
	}
}

func (s *service) history(ctx context.Context, userID int64, kind InteractionKind) ([]Profile, error) {
	var profiles []Profile
	err := withRetry(ctx, s.opts.Retry, "history", func() error {
		ids, err := s.repo.GetInteractionHistory(ctx, userID, kind, s.opts.HistoryLimit)
		if err != nil {
			return err
		}
		profiles, err = s.profiles.GetProfiles(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Skip profiles that no longer validate rather than poisoning the means.
	valid := profiles[:0]
	for i := range profiles {
		if profiles[i].Validate() == nil {
			valid = append(valid, profiles[i])
		}
	}
	return valid, nil
}

// ── Helpers ──

func (s *service) notify(ctx context.Context, m *Match) {
	event := MatchEvent{
		UserID:        m.UserID,
		MatchedUserID: m.MatchedUserID,
		Compatibility: m.Compatibility,
		MatchedAt:     m.UpdatedAt,
	}
	if err := s.notifier.NotifyMutualMatch(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Int64("user_id", m.UserID).
			Int64("matched_user_id", m.MatchedUserID).
			Msg("failed to deliver match notification")
	}
}

func (s *service) profile(ctx context.Context, userID int64) (*Profile, error) {
	var p *Profile
	err := withRetry(ctx, s.opts.Retry, "get_profile", func() (err error) {
		p, err = s.profiles.GetProfile(ctx, userID)
		return err
	})
	return p, err
}

func (s *service) pair(ctx context.Context, userID, targetID int64) (*Profile, *Profile, error) {
	var actor, target *Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		actor, err = s.profile(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		target, err = s.profile(gctx, targetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return actor, target, nil
}

func (s *service) exclusions(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	var set map[int64]struct{}
	err := withRetry(ctx, s.opts.Retry, "exclusions", func() (err error) {
		set, err = s.repo.GetExclusionSet(ctx, userID)
		return err
	})
	return set, err
}

// weights returns the learned weights, or the uniform default for new users.
func (s *service) weights(ctx context.Context, userID int64) (PreferenceWeights, error) {
	var w PreferenceWeights
	err := withRetry(ctx, s.opts.Retry, "get_weights", func() (err error) {
		w, err = s.repo.GetWeights(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if w == nil {
		return DefaultWeights(), nil
	}
	return s.learner.Normalize(w), nil
}
