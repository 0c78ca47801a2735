// Package store persists the session record across restarts.
package store

import (
	"context"
	"fmt"

	"github.com/nhle/tempvortex/internal/model"
)

// SessionKey is the fixed key the session record is stored under.
const SessionKey = "tempvortex_session"

// Store persists the session record.
type Store interface {
	// LoadSession returns the saved session, or nil when none exists.
	LoadSession(ctx context.Context) (*model.Session, error)

	// SaveSession replaces the saved session.
	SaveSession(ctx context.Context, s *model.Session) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Secrets keeps account tokens outside the main store.
type Secrets interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// tokenKey names the secret holding an account's token.
func tokenKey(a *model.Account) string {
	return fmt.Sprintf("token:%s:%s", a.Provider, a.Address)
}
