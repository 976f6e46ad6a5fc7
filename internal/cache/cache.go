// Package cache persists match results keyed by a normalized request
// fingerprint, with time-based expiry. A cache must never crash its caller:
// every storage failure is logged and degrades to a miss or a no-op.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prospectline/prospect-matcher/internal/prospects"
)

// TTL is how long a cached result stays valid.
const TTL = 30 * 24 * time.Hour

var timeNow = time.Now

type Cache struct {
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, logger: logger}
}

// Get returns the cached matches for the request, or nil on a miss. An entry
// past its TTL is deleted on the way out (lazy expiry).
func (c *Cache) Get(ctx context.Context, req prospects.MatchRequest, userID string) []prospects.Candidate {
	entries, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("loading match cache", zap.Error(err))
		return nil
	}

	target := prospects.NewCacheKey(req, userID)
	for idx, entry := range entries {
		if entry.Key() != target {
			continue
		}

		if c.expired(entry) {
			c.logger.Debug("evicting expired cache entry",
				zap.String("prospect_id", entry.ProspectID),
				zap.Time("cached_at", entry.CachedAt),
			)
			entries = append(entries[:idx], entries[idx+1:]...)
			c.save(ctx, entries)
			return nil
		}

		return entry.Matches
	}

	return nil
}

// Put upserts the matches for the request. Any existing entry with the same
// fingerprint is replaced; candidate lists are never merged.
func (c *Cache) Put(ctx context.Context, req prospects.MatchRequest, userID string, matches []prospects.Candidate) {
	entries, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("loading match cache", zap.Error(err))
		entries = nil
	}

	target := prospects.NewCacheKey(req, userID)
	kept := entries[:0]
	for _, entry := range entries {
		if entry.Key() != target {
			kept = append(kept, entry)
		}
	}

	kept = append(kept, Entry{
		Matches:    matches,
		CachedAt:   timeNow(),
		Query:      req.Query,
		ProspectID: req.ProspectID,
		Company:    req.Company,
		JobTitle:   req.JobTitle,
		Location:   req.Location,
		UserID:     userID,
	})

	c.save(ctx, kept)
}

// GetAllForUser returns all fresh matches belonging to userID, keyed by
// prospect id. As a side effect it compacts the whole store, dropping expired
// entries for any user.
func (c *Cache) GetAllForUser(ctx context.Context, userID string) map[string][]prospects.Candidate {
	entries, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("loading match cache", zap.Error(err))
		return map[string][]prospects.Candidate{}
	}

	result := make(map[string][]prospects.Candidate)
	fresh := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if c.expired(entry) {
			continue
		}
		fresh = append(fresh, entry)
		if entry.UserID == userID {
			result[entry.ProspectID] = entry.Matches
		}
	}

	if len(fresh) != len(entries) {
		c.save(ctx, fresh)
	}

	return result
}

// SweepExpired removes every expired entry regardless of owner. Safe to call
// repeatedly.
func (c *Cache) SweepExpired(ctx context.Context) {
	entries, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("loading match cache", zap.Error(err))
		return
	}

	fresh := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if !c.expired(entry) {
			fresh = append(fresh, entry)
		}
	}

	if len(fresh) == len(entries) {
		return
	}

	c.logger.Info("swept expired cache entries",
		zap.Int("removed", len(entries)-len(fresh)),
		zap.Int("left", len(fresh)),
	)
	c.save(ctx, fresh)
}

// Invalidate drops the entry for the given fingerprint, typically because a
// collaborator knows the cached result is stale.
func (c *Cache) Invalidate(ctx context.Context, req prospects.MatchRequest, userID string) {
	entries, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("loading match cache", zap.Error(err))
		return
	}

	target := prospects.NewCacheKey(req, userID)
	kept := entries[:0]
	for _, entry := range entries {
		if entry.Key() != target {
			kept = append(kept, entry)
		}
	}

	c.save(ctx, kept)
}

// ClearAll removes every entry unconditionally.
func (c *Cache) ClearAll(ctx context.Context) {
	c.save(ctx, []Entry{})
}

func (c *Cache) expired(entry Entry) bool {
	return timeNow().Sub(entry.CachedAt) > TTL
}

func (c *Cache) save(ctx context.Context, entries []Entry) {
	if err := c.store.Save(ctx, entries); err != nil {
		c.logger.Warn("saving match cache", zap.Error(err))
	}
}
