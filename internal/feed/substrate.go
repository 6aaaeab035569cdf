package feed

import "errors"

var (
	// ErrQuotaExceeded is returned by a Substrate when a write would exceed its capacity.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrStorageUnavailable is returned by a Substrate when the backing storage cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Substrate is the durable key/value storage the store layers its collection on.
// Values are opaque strings; callers do whole-value read-modify-write.
// Implementations must be safe for concurrent use.
type Substrate interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	// A failed Set must leave the previous value intact.
	Set(key string, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}
