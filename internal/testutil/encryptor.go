package testutil

import (
	"feed-go/internal/encryption"
	"feed-go/internal/feed"
)

// NewTestEncryptor returns a key-less deterministic encryptor.
func NewTestEncryptor() feed.Encryptor {
	return encryption.NewTestEncryptor()
}
