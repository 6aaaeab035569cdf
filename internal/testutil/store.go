package testutil

import (
	"time"

	"feed-go/internal/feed"
)

// StoreFixture bundles a Store with the doubles behind it.
type StoreFixture struct {
	Store      *feed.Store
	Substrate  *FailingSubstrate
	Identities *Identities
	Clock      *StubClock
	IDs        *StubIDGenerator
}

// NewStoreFixture builds a Store over an in-memory substrate, a switchable
// identity resolver, a clock that advances one minute per reading and
// sequential ids ("rec-1", ...).
func NewStoreFixture() *StoreFixture {
	f := &StoreFixture{
		Substrate:  NewFailingSubstrate(NewTestSubstrate()),
		Identities: NewIdentities(),
		Clock:      NewSteppingClock(FixedClock().Now(), time.Minute),
		IDs:        NewPrefixedIDGenerator("rec"),
	}
	f.Store = feed.NewStore(f.Substrate, f.Identities, feed.Base64Encoder{}, feed.NewNopLogger(), f.Clock, f.IDs, feed.NopMetrics{}, feed.Options{})
	return f
}
