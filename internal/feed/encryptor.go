package feed

import "io"

// Encryptor seals substrate values at rest. Sealing needs only the public
// key, so a locked substrate still accepts writes; reading sealed values back
// needs the DecryptionContext returned by Unlock.
type Encryptor interface {
	// Setup generates the key pair once, during `feed config init --encrypt`.
	// The public key is stored in the clear and the private key is sealed
	// with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key with passphrase. The returned context is
	// handed to the encrypted substrate, which rejects reads of sealed values
	// until it has one. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files are present.
	IsConfigured() bool
}

// DecryptionContext is an unlocked private key held in memory only.
type DecryptionContext interface {
	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
