package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// FeedSnapshot is a ranked feed frozen at the moment of its first page.
// Later pages walk the same ranking so positions never shift.
type FeedSnapshot struct {
	UserID    int64           `json:"user_id"`
	Items     []ScoredProfile `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

// FeedCache stores snapshots behind opaque tokens.
type FeedCache interface {
	Save(ctx context.Context, snap *FeedSnapshot, ttl time.Duration) (string, error)
	// Load returns ErrCursorExpired when the token is unknown or expired.
	Load(ctx context.Context, token string) (*FeedSnapshot, error)
}

// ── Redis ──

type redisFeedCache struct {
	client *redis.Client
	prefix string
}

func NewRedisFeedCache(client *redis.Client) FeedCache {
	return &redisFeedCache{client: client, prefix: "matching:feed:"}
}

func (c *redisFeedCache) Save(ctx context.Context, snap *FeedSnapshot, ttl time.Duration) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode feed snapshot: %w", err)
	}

	token := uuid.NewString()
	if err := c.client.Set(ctx, c.prefix+token, data, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: save feed snapshot: %v", ErrTransientStore, err)
	}
	return token, nil
}

func (c *redisFeedCache) Load(ctx context.Context, token string) (*FeedSnapshot, error) {
	data, err := c.client.Get(ctx, c.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCursorExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load feed snapshot: %v", ErrTransientStore, err)
	}

	var snap FeedSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, ErrCursorExpired
	}
	return &snap, nil
}

// ── Memory ──

type memoryFeedEntry struct {
	snap      *FeedSnapshot
	expiresAt time.Time
}

// MemoryFeedCache keeps snapshots in process. Expired entries are invisible
// to Load and removed by Sweep.
type MemoryFeedCache struct {
	mu      sync.Mutex
	entries map[string]memoryFeedEntry
	now     func() time.Time
}

func NewMemoryFeedCache() *MemoryFeedCache {
	return &MemoryFeedCache{
		entries: make(map[string]memoryFeedEntry),
		now:     time.Now,
	}
}

func (c *MemoryFeedCache) Save(ctx context.Context, snap *FeedSnapshot, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = memoryFeedEntry{snap: snap, expiresAt: c.now().Add(ttl)}
	return token, nil
}

func (c *MemoryFeedCache) Load(ctx context.Context, token string) (*FeedSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, ErrCursorExpired
	}
	return entry.snap, nil
}

// Sweep drops expired snapshots.
func (c *MemoryFeedCache) Sweep(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for token, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, token)
		}
	}
	return nil
}

func (c *MemoryFeedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ── Cursors ──

// encodeCursor joins a snapshot token and the next offset.
func encodeCursor(token string, offset int) string {
	return token + ":" + strconv.Itoa(offset)
}

func decodeCursor(cursor string) (string, int, error) {
	token, rawOffset, ok := strings.Cut(cursor, ":")
	if !ok || token == "" {
		return "", 0, validationErrorf("malformed cursor")
	}
	offset, err := strconv.Atoi(rawOffset)
	if err != nil || offset < 0 {
		return "", 0, validationErrorf("malformed cursor offset")
	}
	return token, offset, nil
}
