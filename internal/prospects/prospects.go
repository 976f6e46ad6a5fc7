package prospects

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
)

// MatchRequest identifies one unit of matching work: find likely
// hiring-manager contacts for a saved prospect.
type MatchRequest struct {
	ProspectID string `json:"prospect_id" mapstructure:"prospect_id"`
	Company    string `json:"company"`
	JobTitle   string `json:"job_title" mapstructure:"job_title"`
	Location   string `json:"location,omitempty"`
	// Query is the free-text search the user typed, if any. It never
	// influences de-duplication, only cache identity.
	Query string `json:"query,omitempty"`
}

// Candidate is a ranked contact suggestion returned by a match source.
// The coordinator and cache move it around without inspecting it.
type Candidate struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	LinkedinURL string  `json:"linkedin_url"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
}

// List is a set of match requests loaded from a prospect file.
type List struct {
	Items []*MatchRequest
}

func (l *List) Len() int {
	return len(l.Items)
}

func (l *List) FindByProspectID(id string) *MatchRequest {
	for _, req := range l.Items {
		if req.ProspectID == id {
			return req
		}
	}
	return nil
}

// Validate checks every request in the list and returns all problems at once.
func (l *List) Validate() error {
	var err error
	for idx, req := range l.Items {
		if req == nil {
			err = multierr.Append(err, fmt.Errorf("prospect %d: empty entry", idx))
			continue
		}
		if strings.TrimSpace(req.ProspectID) == "" {
			err = multierr.Append(err, fmt.Errorf("prospect %d: prospect_id is required", idx))
		}
		if strings.TrimSpace(req.Company) == "" {
			err = multierr.Append(err, fmt.Errorf("prospect %q: company is required", req.ProspectID))
		}
		if strings.TrimSpace(req.JobTitle) == "" {
			err = multierr.Append(err, fmt.Errorf("prospect %q: job_title is required", req.ProspectID))
		}
	}
	return err
}

// FromFile loads a prospect list from a JSON file. An empty file yields an
// empty list.
func FromFile(path string) (*List, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &List{}, nil
	}

	var list List
	if err := json.NewDecoder(file).Decode(&list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ReportByCompany groups the provided results for human inspection.
func ReportByCompany(list *List, results map[string][]Candidate) map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, req := range list.Items {
		key := fmt.Sprintf("%s (%s)", req.Company, req.JobTitle)
		for _, c := range results[req.ProspectID] {
			report[key] = append(report[key], map[string]string{
				"name":       c.Name,
				"title":      c.Title,
				"linkedin":   c.LinkedinURL,
				"confidence": fmt.Sprintf("%.2f", c.Confidence),
				"reason":     c.Reason,
			})
		}
	}
	return report
}

// DumpToTmpFile writes the results to a temporary JSON file and returns its name.
func DumpToTmpFile(results map[string][]Candidate) (string, error) {
	file, err := os.CreateTemp("", "matches_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return "", err
	}
	return file.Name(), nil
}
