package cache

import (
	"context"
	"time"

	"github.com/prospectline/prospect-matcher/internal/prospects"
)

// Entry is one persisted cache record. The whole entry set is serialized as a
// single array; every mutation rewrites it. Field names follow the legacy
// client-local layout, where jobId holds the saved prospect's id.
type Entry struct {
	Matches    []prospects.Candidate `json:"matches"`
	CachedAt   time.Time             `json:"cachedAt"`
	Query      string                `json:"query,omitempty"`
	ProspectID string                `json:"jobId"`
	Company    string                `json:"company"`
	JobTitle   string                `json:"jobTitle"`
	Location   string                `json:"location,omitempty"`
	UserID     string                `json:"userId"`
}

// Key derives the normalized cache key for the entry.
func (e Entry) Key() prospects.CacheKey {
	return prospects.NewCacheKey(prospects.MatchRequest{
		ProspectID: e.ProspectID,
		Company:    e.Company,
		JobTitle:   e.JobTitle,
		Location:   e.Location,
		Query:      e.Query,
	}, e.UserID)
}

// Store persists the full entry array. Implementations decide where the array
// lives (a local file, redis); the cache never partially updates it.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}
