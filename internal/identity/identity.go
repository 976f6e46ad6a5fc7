// Package identity resolves the user on whose behalf matching runs. In the
// hosted product this is a session lookup; here it comes from configuration
// or the environment.
package identity

import (
	"context"
	"os"
	"strings"
)

// User is the resolved identity. Only the id matters to the matching core.
type User struct {
	ID string
}

// Resolver reports the current user. A nil user with a nil error means nobody
// is signed in, which callers must treat as a first-class outcome.
type Resolver interface {
	Resolve(ctx context.Context) (*User, error)
}

// Static resolves to a fixed user id, falling back to the PROSPECT_MATCHER_USER
// environment variable when the configured id is empty.
type Static struct {
	ID string
}

func NewStatic(id string) *Static {
	return &Static{ID: id}
}

func (s *Static) Resolve(_ context.Context) (*User, error) {
	id := strings.TrimSpace(s.ID)
	if id == "" {
		id = strings.TrimSpace(os.Getenv("PROSPECT_MATCHER_USER"))
	}
	if id == "" {
		return nil, nil
	}
	return &User{ID: id}, nil
}
