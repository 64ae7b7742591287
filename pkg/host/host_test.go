package host

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type countingSource struct {
	calls int32
	id    Identity
	err   error
}

func (s *countingSource) Identity(ctx context.Context) (Identity, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.id, s.err
}

func TestResolveReadsPlatformOnce(t *testing.T) {
	src := &countingSource{id: Identity{UserID: 7, Token: "signed"}}
	a := NewAuth(src, NewDevHost())

	for i := 0; i < 3; i++ {
		id, err := a.Resolve(context.Background())
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if id.Token != "signed" {
			t.Fatalf("token = %q", id.Token)
		}
	}
	if n := atomic.LoadInt32(&src.calls); n != 1 {
		t.Errorf("platform consulted %d times, want 1", n)
	}
}

func TestResolvePrefersSessionStorage(t *testing.T) {
	storage := NewDevHost()
	storage.Set(sessionKey, `{"user_id":7,"token":"from-session"}`)
	src := &countingSource{id: Identity{UserID: 9, Token: "from-platform"}}
	a := NewAuth(src, storage)

	id, err := a.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id.Token != "from-session" || id.UserID != 7 {
		t.Errorf("identity = %+v, want session value", id)
	}
	if atomic.LoadInt32(&src.calls) != 0 {
		t.Error("platform consulted despite cached identity")
	}
}

func TestSessionIdentityKeepsUserID(t *testing.T) {
	storage := NewDevHost()
	src := &countingSource{id: Identity{UserID: 42, Token: "signed"}}

	// First Auth resolves from the platform and persists the identity.
	if _, err := NewAuth(src, storage).Resolve(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A second Auth over the same storage must restore the user id too, so
	// X-User-Id is not dropped on the cached path.
	h, err := NewAuth(src, storage).AuthHeaders(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Get("X-User-Id"); got != "42" {
		t.Errorf("X-User-Id from cached identity = %q, want 42", got)
	}
	if n := atomic.LoadInt32(&src.calls); n != 1 {
		t.Errorf("platform consulted %d times, want 1", n)
	}
}

func TestIncompleteSessionIdentityReResolves(t *testing.T) {
	storage := NewDevHost()
	storage.Set(sessionKey, `{"token":"token-only"}`)
	src := &countingSource{id: Identity{UserID: 3, Token: "fresh"}}
	a := NewAuth(src, storage)

	id, err := a.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id.UserID != 3 || id.Token != "fresh" {
		t.Errorf("identity = %+v, want fresh platform resolve", id)
	}
}

func TestClearForcesReResolve(t *testing.T) {
	storage := NewDevHost()
	src := &countingSource{id: Identity{Token: "t1"}}
	a := NewAuth(src, storage)

	if _, err := a.Resolve(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.Clear()
	if _, ok := storage.Get(sessionKey); ok {
		t.Error("Clear left identity in session storage")
	}

	src.id = Identity{Token: "t2"}
	id, err := a.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id.Token != "t2" {
		t.Errorf("token after Clear = %q, want fresh one", id.Token)
	}
}

func TestAuthHeaders(t *testing.T) {
	src := &countingSource{id: Identity{UserID: 42, Token: "signed-payload"}}
	a := NewAuth(src, nil)

	h, err := a.AuthHeaders(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Get("X-Init-Data"); got != "signed-payload" {
		t.Errorf("X-Init-Data = %q", got)
	}
	if got := h.Get("X-User-Id"); got != "42" {
		t.Errorf("X-User-Id = %q", got)
	}
}

func TestAuthHeadersPropagateFailure(t *testing.T) {
	src := &countingSource{err: ErrNoIdentity}
	a := NewAuth(src, nil)

	if _, err := a.AuthHeaders(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("err = %v, want ErrNoIdentity", err)
	}
}

func TestConfirmFunc(t *testing.T) {
	var asked string
	c := ConfirmFunc(func(_ context.Context, message string) (bool, error) {
		asked = message
		return false, nil
	})
	ok, err := c.Confirm(context.Background(), "Delete category?")
	if err != nil || ok {
		t.Fatalf("Confirm = %v, %v", ok, err)
	}
	if asked != "Delete category?" {
		t.Errorf("message = %q", asked)
	}
}

func TestDevHostIdentity(t *testing.T) {
	d := NewDevHost()
	id, err := d.Identity(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id.UserID != 1 || id.Token == "" {
		t.Errorf("dev identity = %+v", id)
	}

	d.User = Identity{}
	if _, err := d.Identity(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("empty dev user: err = %v", err)
	}
}
