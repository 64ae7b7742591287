package host

import (
	"context"
	"sync"
)

// DevHost is an in-process stand-in for the platform SDK. It backs tests and
// the CLI, where no real mini-app surface exists.
type DevHost struct {
	// User is the identity handed out by Identity. Zero value gets a
	// deterministic development user.
	User Identity

	mu      sync.Mutex
	storage map[string]string
}

// NewDevHost returns a DevHost with a fixed development user.
func NewDevHost() *DevHost {
	return &DevHost{
		User: Identity{
			UserID:    1,
			Username:  "devuser",
			FirstName: "Dev",
			Token:     "dev-init-data",
		},
	}
}

// Identity implements IdentitySource.
func (d *DevHost) Identity(ctx context.Context) (Identity, error) {
	if d.User.Token == "" {
		return Identity{}, ErrNoIdentity
	}
	return d.User, nil
}

// Get implements SessionStorage.
func (d *DevHost) Get(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.storage[key]
	return v, ok
}

// Set implements SessionStorage.
func (d *DevHost) Set(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.storage == nil {
		d.storage = make(map[string]string)
	}
	d.storage[key] = value
}

// Delete implements SessionStorage.
func (d *DevHost) Delete(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.storage, key)
}
