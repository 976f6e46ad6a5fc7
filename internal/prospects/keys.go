package prospects

import (
	"fmt"
	"strings"
)

// ProcessingKey identifies a logical unit of in-flight work. Two requests with
// the same key must never be processed concurrently.
type ProcessingKey string

// CacheKey identifies a cached result. Unlike ProcessingKey it is scoped to a
// user and normalized, so equivalent-but-differently-cased inputs share one
// cache slot while different queries or users do not.
type CacheKey string

// NewProcessingKey derives the in-flight de-duplication key. Fields are taken
// verbatim; the owning user never participates.
func NewProcessingKey(req MatchRequest) ProcessingKey {
	return ProcessingKey(fmt.Sprintf("%s|%s|%s|%s",
		req.ProspectID, req.Company, req.JobTitle, req.Location,
	))
}

// NewCacheKey derives the cache lookup key for a request owned by userID.
// Company, title and location are normalized; query and user id are exact.
func NewCacheKey(req MatchRequest, userID string) CacheKey {
	return CacheKey(fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		req.ProspectID,
		Normalize(req.Company),
		Normalize(req.JobTitle),
		Normalize(req.Location),
		userID,
		req.Query,
	))
}

// Normalize lower-cases and trims a fingerprint field.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
