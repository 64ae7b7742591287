// Package host is the boundary to the mini-app platform the client runs
// inside. The platform supplies the user identity, session storage, and
// native popups; everything here is an interface so the sync layer never
// depends on a concrete SDK.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
)

// ErrNoIdentity is returned when the platform cannot resolve a user.
var ErrNoIdentity = errors.New("host: no identity available")

// Identity is the resolved platform user.
type Identity struct {
	// UserID is the platform-assigned user id.
	UserID int64 `json:"user_id"`

	// Username is the platform handle, if the user has one.
	Username string `json:"username,omitempty"`

	// FirstName is the display name.
	FirstName string `json:"first_name,omitempty"`

	// Token is the signed init payload proving the identity to the backend.
	Token string `json:"token"`
}

// IdentitySource resolves the current user from the platform.
type IdentitySource interface {
	Identity(ctx context.Context) (Identity, error)
}

// SessionStorage is the platform's session-scoped key/value store. Values
// live for the current mini-app session only.
type SessionStorage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// Confirmer asks the user a yes/no question and blocks until they answer.
// It wraps the platform's callback-style popup in an awaitable call, so
// callers stay plain sequential code.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, message string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// AlwaysConfirm approves every question. Useful for non-interactive tools.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) {
	return true, nil
})

// sessionKey is the session-storage key for the cached identity document.
const sessionKey = "minishop:identity"

// Auth resolves identity headers for the backend. The identity is read from
// the platform once and reused from session storage until Clear is called.
type Auth struct {
	source  IdentitySource
	storage SessionStorage

	mu sync.Mutex
	id *Identity
}

// NewAuth creates an Auth over a platform identity source and session
// storage. storage may be nil; the identity is then cached in memory only.
func NewAuth(source IdentitySource, storage SessionStorage) *Auth {
	return &Auth{source: source, storage: storage}
}

// Resolve returns the current identity, consulting the cache first.
func (a *Auth) Resolve(ctx context.Context) (Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.id != nil {
		return *a.id, nil
	}
	if a.storage != nil {
		if raw, ok := a.storage.Get(sessionKey); ok && raw != "" {
			var id Identity
			// An incomplete document (no token or no user id) is treated
			// as absent so headers built from it are never lossy.
			if err := json.Unmarshal([]byte(raw), &id); err == nil && id.Token != "" && id.UserID != 0 {
				a.id = &id
				return id, nil
			}
		}
	}
	id, err := a.source.Identity(ctx)
	if err != nil {
		return Identity{}, err
	}
	a.id = &id
	if a.storage != nil {
		if raw, err := json.Marshal(id); err == nil {
			a.storage.Set(sessionKey, string(raw))
		}
	}
	return id, nil
}

// Clear drops the cached identity. The next Resolve hits the platform again.
func (a *Auth) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.id = nil
	if a.storage != nil {
		a.storage.Delete(sessionKey)
	}
}

// AuthHeaders implements api.AuthProvider. The backend validates the signed
// init payload from X-Init-Data; X-User-Id is advisory.
func (a *Auth) AuthHeaders(ctx context.Context) (http.Header, error) {
	id, err := a.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("X-Init-Data", id.Token)
	if id.UserID != 0 {
		h.Set("X-User-Id", strconv.FormatInt(id.UserID, 10))
	}
	return h, nil
}
