package encryption

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"feed-go/internal/feed"
)

// testMagic starts every TestEncryptor payload.
var testMagic = []byte("FEEDTEST")

// testMask is XORed over each byte so ciphertext never equals plaintext.
const testMask = 0x5a

// TestEncryptor is a deterministic, key-less Encryptor for tests. It is
// reversible and needs no passphrase; do not use it outside tests.
type TestEncryptor struct {
	setupCalled bool
}

var _ feed.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(testMagic); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if err := mask(bufio.NewReader(r), bw); err != nil {
		return err
	}
	return bw.Flush()
}

func (e *TestEncryptor) Unlock(string) (feed.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext reverses TestEncryptor.
type TestDecryptionContext struct{}

var _ feed.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	header := make([]byte, len(testMagic))
	if _, err := io.ReadFull(br, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testMagic) {
		return fmt.Errorf("invalid test encryption header")
	}
	bw := bufio.NewWriter(w)
	if err := mask(br, bw); err != nil {
		return err
	}
	return bw.Flush()
}

func mask(r io.ByteReader, w io.ByteWriter) error {
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading data: %w", err)
		}
		if err := w.WriteByte(b ^ testMask); err != nil {
			return fmt.Errorf("writing data: %w", err)
		}
	}
}
