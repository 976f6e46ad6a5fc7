// Package static provides a deterministic match source backed by fixtures
// from the configuration file. Useful for demos and for working on the
// pipeline without burning API quota.
package static

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/prospectline/prospect-matcher/internal/prospects"
)

type Static struct {
	fixtures map[string][]prospects.Candidate
	logger   *zap.Logger
}

// New creates a static source from raw fixture data keyed by prospect id.
// Values come straight from viper, so they are decoded leniently.
func New(raw map[string]any, logger *zap.Logger) (*Static, error) {
	fixtures := make(map[string][]prospects.Candidate, len(raw))

	var errs error
	for prospectID, value := range raw {
		var candidates []prospects.Candidate

		cfg := &mapstructure.DecoderConfig{
			Result:  &candidates,
			TagName: "json",
		}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fixture %q: %w", prospectID, err))
			continue
		}
		if err := decoder.Decode(value); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fixture %q: %w", prospectID, err))
			continue
		}

		fixtures[prospectID] = candidates
	}

	if errs != nil {
		return nil, errs
	}

	return &Static{fixtures: fixtures, logger: logger}, nil
}

func (s *Static) GetMatches(_ context.Context, req prospects.MatchRequest) ([]prospects.Candidate, error) {
	matches := s.fixtures[req.ProspectID]
	if s.logger != nil {
		s.logger.Debug("serving static matches",
			zap.String("prospect_id", req.ProspectID),
			zap.Int("count", len(matches)),
		)
	}
	return matches, nil
}

func (s *Static) GetBulkMatches(_ context.Context, reqs []prospects.MatchRequest) (map[string][]prospects.Candidate, error) {
	result := make(map[string][]prospects.Candidate, len(reqs))
	for _, req := range reqs {
		if matches, ok := s.fixtures[req.ProspectID]; ok {
			result[req.ProspectID] = matches
		}
	}
	return result, nil
}
