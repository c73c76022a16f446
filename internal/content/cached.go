package content

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/edubot/edubot/internal/platform/cache"
)

// CachedProvider is a read-through Redis cache in front of another Provider.
// Cache failures are logged and fall through to the inner provider, so a
// cache outage never makes content unavailable.
type CachedProvider struct {
	inner Provider
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedProvider wraps a Provider with a Redis cache.
func NewCachedProvider(inner Provider, c *cache.Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: c, ttl: ttl}
}

// Subtopics implements Provider.
func (p *CachedProvider) Subtopics(ctx context.Context, topic string) ([]Subtopic, error) {
	key := cacheKey("subtopics", topic)

	var cached []Subtopic
	if p.getJSON(ctx, key, &cached) {
		return cached, nil
	}

	subtopics, err := p.inner.Subtopics(ctx, topic)
	if err != nil {
		return nil, err
	}
	p.setJSON(ctx, key, subtopics)
	return subtopics, nil
}

// Search implements Provider.
func (p *CachedProvider) Search(ctx context.Context, topic, query string, limit int) ([]Passage, error) {
	key := cacheKey("search", topic, query, fmt.Sprint(limit))

	var cached []Passage
	if p.getJSON(ctx, key, &cached) {
		return cached, nil
	}

	passages, err := p.inner.Search(ctx, topic, query, limit)
	if err != nil {
		return nil, err
	}
	p.setJSON(ctx, key, passages)
	return passages, nil
}

// Topics implements Provider. The topic list never hits the cache: it is
// already served from memory by the inner provider.
func (p *CachedProvider) Topics(ctx context.Context) ([]TopicInfo, error) {
	return p.inner.Topics(ctx)
}

func (p *CachedProvider) getJSON(ctx context.Context, key string, dest any) bool {
	data, ok := p.cache.GetBytes(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		slog.Debug("content cache entry unreadable, refetching", "key", key, "error", err)
		return false
	}
	return true
}

func (p *CachedProvider) setJSON(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := p.cache.SetBytes(ctx, key, data, p.ttl); err != nil {
		slog.Debug("content cache write failed", "key", key, "error", err)
	}
}

// cacheKey hashes the lookup parameters so arbitrary topic/query text cannot
// produce oversized or malformed Redis keys.
func cacheKey(kind string, parts ...string) string {
	h, _ := blake2b.New256(nil)
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "content:" + kind + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}
