package feed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Blob is an attachment as handed to the store: a name and readable content.
type Blob interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// AttachmentEncoder converts a blob into the string stored on the record.
type AttachmentEncoder interface {
	Encode(b Blob) (string, error)
}

// Base64Encoder stores attachments as standard base64.
type Base64Encoder struct{}

func (Base64Encoder) Encode(b Blob) (string, error) {
	rc, err := b.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", b.Name(), err)
	}
	defer rc.Close()

	var sb strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	if _, err := io.Copy(enc, rc); err != nil {
		return "", fmt.Errorf("reading %s: %w", b.Name(), err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding %s: %w", b.Name(), err)
	}
	return sb.String(), nil
}

// BytesBlob is an in-memory Blob.
type BytesBlob struct {
	FileName string
	Data     []byte
}

func NewBytesBlob(name string, data []byte) *BytesBlob {
	return &BytesBlob{FileName: name, Data: data}
}

func (b *BytesBlob) Name() string { return b.FileName }

func (b *BytesBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}
