package source

import (
	"context"

	"github.com/prospectline/prospect-matcher/internal/prospects"
)

// Source produces ranked contact candidates for match requests. A prospect
// with no plausible contacts yields an empty slice or an absent map entry,
// never an error.
type Source interface {
	GetMatches(ctx context.Context, req prospects.MatchRequest) ([]prospects.Candidate, error)
	GetBulkMatches(ctx context.Context, reqs []prospects.MatchRequest) (map[string][]prospects.Candidate, error)
}
