package substrate

import (
	"context"
	"fmt"

	"feed-go/internal/config"
	"feed-go/internal/database"
	"feed-go/internal/feed"
)

// NewSubstrateFromConfig creates a Substrate based on the substrate config type.
// When cfg.Encrypt is set the backend is wrapped in an EncryptedSubstrate,
// which the caller must Unlock before encrypted values can be read.
// The returned close function releases backend resources and is never nil.
func NewSubstrateFromConfig(ctx context.Context, cfg config.SubstrateConfig, enc feed.Encryptor) (feed.Substrate, func() error, error) {
	base, closeFn, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Encrypt {
		return base, closeFn, nil
	}
	if enc == nil {
		closeFn()
		return nil, nil, fmt.Errorf("substrate encryption enabled but no encryptor configured")
	}
	return NewEncryptedSubstrate(base, enc), closeFn, nil
}

func newBackend(ctx context.Context, cfg config.SubstrateConfig) (feed.Substrate, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Type {
	case "memory":
		return NewMemorySubstrate(cfg.MaxBytes), noop, nil
	case "filesystem":
		if cfg.DataDir == "" {
			return nil, nil, fmt.Errorf("filesystem substrate requires data_dir to be set")
		}
		s, err := NewFileSystemSubstrate(cfg.DataDir, cfg.MaxBytes)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "sqlite", "postgres":
		s, err := database.NewSubstrateFromConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "s3":
		timeout, err := cfg.CallTimeout()
		if err != nil {
			return nil, nil, err
		}
		s, err := NewS3Substrate(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Timeout:         timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown substrate type: %s", cfg.Type)
	}
}
