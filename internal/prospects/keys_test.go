package prospects

import "testing"

func TestProcessingKeyIgnoresUserAndQuery(t *testing.T) {
	a := MatchRequest{ProspectID: "p1", Company: "Stripe", JobTitle: "PM", Query: "payments"}
	b := MatchRequest{ProspectID: "p1", Company: "Stripe", JobTitle: "PM"}

	if NewProcessingKey(a) != NewProcessingKey(b) {
		t.Fatalf("expected query not to influence the processing key")
	}
}

func TestProcessingKeyIsCaseSensitive(t *testing.T) {
	a := MatchRequest{ProspectID: "p1", Company: "Stripe", JobTitle: "PM"}
	b := MatchRequest{ProspectID: "p1", Company: "stripe", JobTitle: "PM"}

	if NewProcessingKey(a) == NewProcessingKey(b) {
		t.Fatalf("processing keys take fields verbatim")
	}
}

func TestCacheKeyNormalizesCompanyTitleLocation(t *testing.T) {
	a := MatchRequest{ProspectID: "p1", Company: " Acme ", JobTitle: "Engineer", Location: "Berlin "}
	b := MatchRequest{ProspectID: "p1", Company: "acme", JobTitle: "engineer", Location: "berlin"}

	if NewCacheKey(a, "u1") != NewCacheKey(b, "u1") {
		t.Fatalf("expected normalized fields to produce equal cache keys")
	}
}

func TestCacheKeyExactOnUserAndQuery(t *testing.T) {
	req := MatchRequest{ProspectID: "p1", Company: "Acme", JobTitle: "Engineer"}

	if NewCacheKey(req, "u1") == NewCacheKey(req, "u2") {
		t.Fatalf("expected user id to separate cache keys")
	}

	withQuery := req
	withQuery.Query = "Senior"
	if NewCacheKey(req, "u1") == NewCacheKey(withQuery, "u1") {
		t.Fatalf("expected query to separate cache keys")
	}
}
