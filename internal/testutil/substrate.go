package testutil

import (
	"sync"

	"feed-go/internal/feed"
	"feed-go/internal/substrate"
)

// NewTestSubstrate returns an empty in-memory substrate without quota.
func NewTestSubstrate() *substrate.MemorySubstrate {
	return substrate.NewMemorySubstrate(0)
}

// FailingSubstrate wraps a substrate and fails reads or writes on demand.
// It counts successful writes so tests can assert nothing was written.
type FailingSubstrate struct {
	feed.Substrate

	mu     sync.Mutex
	getErr  error
	setErr  error
	keyErrs map[string]error
	sets    int
}

var _ feed.Substrate = (*FailingSubstrate)(nil)

func NewFailingSubstrate(inner feed.Substrate) *FailingSubstrate {
	return &FailingSubstrate{Substrate: inner}
}

// FailGets makes every Get return err; nil restores normal reads.
func (f *FailingSubstrate) FailGets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// FailSets makes every Set return err; nil restores normal writes.
func (f *FailingSubstrate) FailSets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

// FailSetsOf makes writes to key return err; nil restores them.
func (f *FailingSubstrate) FailSetsOf(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keyErrs == nil {
		f.keyErrs = make(map[string]error)
	}
	if err == nil {
		delete(f.keyErrs, key)
		return
	}
	f.keyErrs[key] = err
}

// Sets returns the number of writes that reached the inner substrate.
func (f *FailingSubstrate) Sets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

func (f *FailingSubstrate) Get(key string) (string, bool, error) {
	f.mu.Lock()
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return f.Substrate.Get(key)
}

func (f *FailingSubstrate) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	if err := f.keyErrs[key]; err != nil {
		return err
	}
	if err := f.Substrate.Set(key, value); err != nil {
		return err
	}
	f.sets++
	return nil
}
