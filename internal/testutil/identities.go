package testutil

import (
	"sync"

	"feed-go/internal/feed"
	"feed-go/internal/model"
)

// Identities is a switchable feed.IdentityResolver, so one test can act as
// several users in turn.
type Identities struct {
	mu      sync.Mutex
	current *model.Identity
	err     error
}

var _ feed.IdentityResolver = (*Identities)(nil)

// NewIdentities returns a resolver with nobody logged in.
func NewIdentities() *Identities {
	return &Identities{}
}

// As makes id the current identity.
func (r *Identities) As(id model.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current, r.err = &id, nil
}

// Anonymous logs everybody out.
func (r *Identities) Anonymous() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current, r.err = nil, nil
}

// FailWith makes CurrentIdentity return err.
func (r *Identities) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Identities) CurrentIdentity() (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.current == nil {
		return nil, nil
	}
	id := *r.current
	return &id, nil
}

// Alice and Bob are ready-made identities.
var (
	Alice = model.Identity{ID: "u-alice", Email: "alice@example.com", Username: "alice", Avatar: "alice.png"}
	Bob   = model.Identity{ID: "u-bob", Email: "bob@example.com", Username: "bob"}
)
