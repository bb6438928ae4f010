// Package referencecache implements a TTL-aware cache of each
// hypothesis's reference-document full text, fronting the Crawler with a
// Redis-backed per-hypothesis advisory lock so concurrent full-reference
// analyses for the same hypothesis trigger exactly one fetch.
package referencecache

import (
	"context"
	"fmt"
	"time"

	"github.com/Agnikulu/signalnoise/internal/adapters"
	"github.com/Agnikulu/signalnoise/internal/models"
	"github.com/Agnikulu/signalnoise/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// lockPollInterval is how often a caller that lost the advisory-lock race
// re-checks the cache while the winner is fetching.
const lockPollInterval = 200 * time.Millisecond

// Cache resolves a hypothesis's reference full text: serve fresh cache,
// otherwise fetch through the Crawler under a per-hypothesis lock, then
// cache the result.
type Cache struct {
	store       *store.Store
	crawler     adapters.Crawler
	redis       *redis.Client
	lockTimeout time.Duration
	logger      zerolog.Logger
}

// New builds a Cache. lockTimeout bounds how long a caller waits to acquire
// the advisory lock before falling back to serving whatever is cached (even
// if stale) or an empty string.
func New(st *store.Store, crawler adapters.Crawler, redisClient *redis.Client, lockTimeout time.Duration, logger zerolog.Logger) *Cache {
	if lockTimeout == 0 {
		lockTimeout = 10 * time.Second
	}
	return &Cache{
		store:       st,
		crawler:     crawler,
		redis:       redisClient,
		lockTimeout: lockTimeout,
		logger:      logger.With().Str("component", "reference-cache").Logger(),
	}
}

func lockKey(hypothesisID string) string {
	return fmt.Sprintf("refcache:lock:%s", hypothesisID)
}

// GetReferenceText returns the full text of hypothesis's reference
// document, fetching and caching it if missing or expired. A hypothesis
// with no reference URL or ReferenceTypeNone returns an empty string and no
// error. A Crawler failure degrades to an empty string (analysis proceeds
// on segment text alone) rather than failing the caller.
func (c *Cache) GetReferenceText(ctx context.Context, hypothesis *models.Hypothesis) (string, error) {
	if hypothesis.ReferenceURL == "" || hypothesis.ReferenceType == models.ReferenceTypeNone {
		return "", nil
	}

	entry, err := c.store.GetReferenceCacheEntry(ctx, hypothesis.ID)
	if err != nil && err != store.ErrNotFound {
		return "", fmt.Errorf("reference cache: read entry: %w", err)
	}
	if err == store.ErrNotFound {
		entry = nil
	}
	if entry != nil && c.isFresh(entry, hypothesis.ReferenceType) {
		return entry.FullText, nil
	}

	acquired, err := c.acquireLock(ctx, hypothesis.ID)
	if err != nil {
		c.logger.Warn().Err(err).Str("hypothesis_id", hypothesis.ID).Msg("lock acquisition failed, serving cached text if any")
		if entry != nil {
			return entry.FullText, nil
		}
		return "", nil
	}

	if !acquired {
		return c.waitForFetchOrServeStale(ctx, hypothesis, entry)
	}
	defer c.releaseLock(ctx, hypothesis.ID)

	// Re-check after acquiring: another process may have refreshed the
	// entry between our initial read and winning the lock.
	entry, err = c.store.GetReferenceCacheEntry(ctx, hypothesis.ID)
	if err == nil && entry != nil && c.isFresh(entry, hypothesis.ReferenceType) {
		return entry.FullText, nil
	}

	fullText, _, fetchErr := c.crawler.FetchText(ctx, hypothesis.ReferenceURL)
	if fetchErr != nil {
		c.logger.Warn().Err(fetchErr).Str("hypothesis_id", hypothesis.ID).Str("url", hypothesis.ReferenceURL).Msg("reference fetch failed, degrading to empty reference text")
		return "", nil
	}

	newEntry, err := c.store.PutReferenceCacheEntry(ctx, hypothesis.ID, fullText)
	if err != nil {
		c.logger.Warn().Err(err).Str("hypothesis_id", hypothesis.ID).Msg("failed to persist reference cache entry")
		return fullText, nil
	}
	return newEntry.FullText, nil
}

// Invalidate drops the cached entry for hypothesisID, forcing the next
// GetReferenceText call to re-fetch.
func (c *Cache) Invalidate(ctx context.Context, hypothesisID string) error {
	return c.store.InvalidateReferenceCacheEntry(ctx, hypothesisID)
}

func (c *Cache) isFresh(entry *models.ReferenceCacheEntry, refType models.ReferenceType) bool {
	return time.Since(entry.FetchedAt) < models.ReferenceTTL(refType)
}

// acquireLock attempts to become the single fetcher for hypothesisID using
// Redis SETNX; the lock carries its own TTL so a crashed holder cannot wedge
// the hypothesis forever.
func (c *Cache) acquireLock(ctx context.Context, hypothesisID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	defer cancel()
	ok, err := c.redis.SetNX(ctx, lockKey(hypothesisID), "1", c.lockTimeout).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (c *Cache) releaseLock(ctx context.Context, hypothesisID string) {
	if err := c.redis.Del(context.WithoutCancel(ctx), lockKey(hypothesisID)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("hypothesis_id", hypothesisID).Msg("failed to release reference cache lock")
	}
}

// waitForFetchOrServeStale is entered by every caller that loses the
// advisory-lock race. It polls the cache until the winner populates a
// fresh entry, the lock timeout elapses, or ctx is cancelled — whichever
// comes first — falling back to whatever is cached (possibly stale) rather
// than erroring.
func (c *Cache) waitForFetchOrServeStale(ctx context.Context, hypothesis *models.Hypothesis, staleEntry *models.ReferenceCacheEntry) (string, error) {
	deadline := time.Now().Add(c.lockTimeout)
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fallbackText(staleEntry), nil
		case <-ticker.C:
			entry, err := c.store.GetReferenceCacheEntry(ctx, hypothesis.ID)
			if err == nil && entry != nil && c.isFresh(entry, hypothesis.ReferenceType) {
				return entry.FullText, nil
			}
			if time.Now().After(deadline) {
				return fallbackText(staleEntry), nil
			}
		}
	}
}

func fallbackText(entry *models.ReferenceCacheEntry) string {
	if entry == nil {
		return ""
	}
	return entry.FullText
}
