// Package httpapi implements the match source against the hosted matching
// API.
package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/prospectline/prospect-matcher/internal/prospects"
)

const (
	defaultAPIURL = "https://api.prospectline.dev"
	userAgent     = "prospectline/prospect-matcher"

	matchesPath     = "/v1/matches"
	bulkMatchesPath = "/v1/matches/bulk"
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, token string) *Client {
	return &Client{
		token:  token,
		APIURL: defaultAPIURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

type matchesResponse struct {
	Matches []prospects.Candidate `json:"matches"`
}

type bulkMatchesResponse struct {
	Results map[string][]prospects.Candidate `json:"results"`
}

// GetMatches fetches ranked contacts for a single prospect.
func (c *Client) GetMatches(ctx context.Context, req prospects.MatchRequest) ([]prospects.Candidate, error) {
	q := url.Values{}
	q.Set("prospect_id", req.ProspectID)
	q.Set("company", req.Company)
	q.Set("job_title", req.JobTitle)
	if req.Location != "" {
		q.Set("location", req.Location)
	}
	if req.Query != "" {
		q.Set("query", req.Query)
	}

	var response matchesResponse
	if err := c.getJSON(ctx, c.APIURL+matchesPath, q, &response); err != nil {
		return nil, err
	}

	c.logger.Debug("got matches from api",
		zap.String("prospect_id", req.ProspectID),
		zap.Int("count", len(response.Matches)),
	)

	return response.Matches, nil
}

// GetBulkMatches fetches contacts for many prospects in one call. Prospects
// the API found nothing for are simply absent from the result.
func (c *Client) GetBulkMatches(ctx context.Context, reqs []prospects.MatchRequest) (map[string][]prospects.Candidate, error) {
	payload := struct {
		Requests []prospects.MatchRequest `json:"requests"`
	}{Requests: reqs}

	var response bulkMatchesResponse
	if err := c.postJSON(ctx, c.APIURL+bulkMatchesPath, payload, &response); err != nil {
		return nil, err
	}

	c.logger.Debug("got bulk matches from api",
		zap.Int("requested", len(reqs)),
		zap.Int("resolved", len(response.Results)),
	)

	return response.Results, nil
}
