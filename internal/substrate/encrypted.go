package substrate

import (
	"errors"
	"fmt"
	"sync"

	"feed-go/internal/encryption"
	"feed-go/internal/feed"
)

// ErrLocked is returned when an encrypted value is read before Unlock.
var ErrLocked = errors.New("encrypted substrate is locked")

// EncryptedSubstrate seals every value written to the inner substrate with
// an Encryptor, so values are encrypted at rest. Writes need only the public
// key. Reads need a DecryptionContext provided through Unlock.
//
// Values that were stored before encryption was enabled are returned as is.
type EncryptedSubstrate struct {
	inner     feed.Substrate
	encryptor feed.Encryptor

	mu  sync.RWMutex
	dec feed.DecryptionContext
}

var _ feed.Substrate = (*EncryptedSubstrate)(nil)

func NewEncryptedSubstrate(inner feed.Substrate, encryptor feed.Encryptor) *EncryptedSubstrate {
	return &EncryptedSubstrate{inner: inner, encryptor: encryptor}
}

// Unlock enables reads of sealed values.
func (e *EncryptedSubstrate) Unlock(dec feed.DecryptionContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dec = dec
}

func (e *EncryptedSubstrate) Get(key string) (string, bool, error) {
	raw, ok, err := e.inner.Get(key)
	if err != nil || !ok {
		return raw, ok, err
	}
	if !encryption.IsSealed(raw) {
		return raw, true, nil
	}

	e.mu.RLock()
	dec := e.dec
	e.mu.RUnlock()
	if dec == nil {
		return "", false, fmt.Errorf("reading %s: %w: %w", key, feed.ErrStorageUnavailable, ErrLocked)
	}

	plain, err := encryption.Open(dec, raw)
	if err != nil {
		return "", false, fmt.Errorf("decrypting %s: %w: %w", key, feed.ErrStorageUnavailable, err)
	}
	return plain, true, nil
}

func (e *EncryptedSubstrate) Set(key, value string) error {
	sealed, err := encryption.Seal(e.encryptor, value)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w: %w", key, feed.ErrStorageUnavailable, err)
	}
	return e.inner.Set(key, sealed)
}

func (e *EncryptedSubstrate) Delete(key string) error {
	return e.inner.Delete(key)
}
