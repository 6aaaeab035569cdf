package encryption

import (
	"fmt"
	"strings"

	"filippo.io/age/armor"

	"feed-go/internal/feed"
)

// Seal encrypts plaintext with enc and returns it ASCII-armored, so the
// result can be stored anywhere a string value is expected.
func Seal(enc feed.Encryptor, plaintext string) (string, error) {
	var sb strings.Builder
	aw := armor.NewWriter(&sb)
	if err := enc.Encrypt(strings.NewReader(plaintext), aw); err != nil {
		return "", err
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("closing armor: %w", err)
	}
	return sb.String(), nil
}

// Open reverses Seal.
func Open(dc feed.DecryptionContext, sealed string) (string, error) {
	var sb strings.Builder
	if err := dc.Decrypt(armor.NewReader(strings.NewReader(sealed)), &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// IsSealed reports whether s looks like the output of Seal.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, armor.Header)
}
