package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"feed-go/internal/config"
	"feed-go/internal/encryption"
	"feed-go/internal/feed"
	"feed-go/internal/fs"
	"feed-go/internal/identity"
	"feed-go/internal/metrics"
	"feed-go/internal/model"
	"feed-go/internal/substrate"
)

// ErrLocked is returned when the substrate is encrypted and Unlock has not
// been called.
var ErrLocked = substrate.ErrLocked

// FeedApp is the application layer between the CLI and the store.
// It constructs all dependencies from config, exposes the store and account
// operations with raw string paths for attachments, and releases everything
// on Close.
type FeedApp struct {
	cfg       *config.Config
	substrate feed.Substrate
	closeSub  func() error
	encryptor feed.Encryptor
	directory *identity.Directory
	store     *feed.Store
	metrics   *metrics.Collector
	files     *fs.Collector
	clock     feed.Clock
	logger    feed.Logger
	op        *Operation
	logFile   *os.File
}

// NewFeedApp creates a fully wired FeedApp from the given config.
// command identifies the CLI command being run (e.g. "post", "like").
// The caller must call Close when done.
func NewFeedApp(ctx context.Context, cfg *config.Config, command string) (*FeedApp, error) {
	clock := feed.RealClock{}
	op := NewOperation(command, clock.Now())

	ttl, err := cfg.SessionTTL()
	if err != nil {
		return nil, fmt.Errorf("session ttl: %w", err)
	}

	var enc feed.Encryptor
	if cfg.Substrate.Encrypt {
		enc, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		if !enc.IsConfigured() {
			return nil, fmt.Errorf("encryption keys not found; run `feed config init --encrypt`")
		}
	}

	slogger, logFile, err := newLogger(cfg.LogDir, cfg.LogLevel, op.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With("cmd", command)}

	sub, closeSub, err := substrate.NewSubstrateFromConfig(ctx, cfg.Substrate, enc)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating substrate: %w", err)
	}

	collector := metrics.NewCollector("feed")
	sessions := identity.NewSessionResolver(sub, []byte(cfg.Session.Secret), ttl, clock, logger)
	directory := identity.NewDirectory(sub, sessions, feed.Base64Encoder{}, logger, clock, feed.UUIDGenerator{}, identity.Options{})
	store := feed.NewStore(sub, sessions, feed.Base64Encoder{}, logger, clock, feed.UUIDGenerator{}, collector, feed.Options{
		CollectionKey: cfg.Feed.CollectionKey,
	})

	logger.Debug("app initialized", "substrate", cfg.Substrate.Type, "encrypted", cfg.Substrate.Encrypt)

	return &FeedApp{
		cfg:       cfg,
		substrate: sub,
		closeSub:  closeSub,
		encryptor: enc,
		directory: directory,
		store:     store,
		metrics:   collector,
		files:     fs.NewCollector(0),
		clock:     clock,
		logger:    logger,
		op:        op,
		logFile:   logFile,
	}, nil
}

// Encrypted reports whether the substrate needs Unlock before it can be read.
func (a *FeedApp) Encrypted() bool {
	return a.encryptor != nil
}

// Unlock decrypts the private key with passphrase so encrypted values can be
// read. It is a no-op when the substrate is not encrypted.
func (a *FeedApp) Unlock(passphrase string) error {
	es, ok := a.substrate.(*substrate.EncryptedSubstrate)
	if !ok {
		return nil
	}
	dec, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking: %w", err)
	}
	es.Unlock(dec)
	return nil
}

// Done records the outcome of the command. Call it with the command's error
// before Close.
func (a *FeedApp) Done(err error) {
	if err != nil {
		a.op.Fail()
	}
}

// Register creates an account.
func (a *FeedApp) Register(in identity.RegisterInput) (*model.Identity, error) {
	return a.directory.Register(in)
}

// Login starts a session.
func (a *FeedApp) Login(email, password string) (*model.Identity, error) {
	return a.directory.Login(email, password)
}

// Logout ends the session.
func (a *FeedApp) Logout() error {
	return a.directory.Logout()
}

// WhoAmI returns the current identity, or nil when logged out.
func (a *FeedApp) WhoAmI() (*model.Identity, error) {
	return a.directory.Sessions().CurrentIdentity()
}

// User returns the account with the given id.
func (a *FeedApp) User(id string) (*model.Identity, error) {
	return a.directory.Lookup(id)
}

// Users returns one page of accounts. perPage <= 0 uses the directory default.
func (a *FeedApp) Users(page, perPage int, filter string) (*model.IdentityPage, error) {
	return a.directory.List(page, perPage, filter)
}

// UpdateProfile changes the username and/or avatar. avatarPath may be empty.
func (a *FeedApp) UpdateProfile(username, avatarPath string) (*model.Identity, error) {
	var avatar feed.Blob
	if avatarPath != "" {
		b, err := a.files.Resolve(avatarPath)
		if err != nil {
			return nil, fmt.Errorf("resolving avatar: %w", err)
		}
		avatar = b
	}
	return a.directory.UpdateProfile(username, avatar)
}

// Post publishes a record. paths may name files or directories; directories
// contribute their regular files.
func (a *FeedApp) Post(text string, paths []string, location string) (*model.Record, error) {
	blobs, err := a.files.Collect(paths)
	if err != nil {
		return nil, fmt.Errorf("resolving attachments: %w", err)
	}
	return a.store.Create(feed.CreateInput{Text: text, Attachments: blobs, Location: location})
}

// List returns one page of the feed. perPage <= 0 uses the configured default.
func (a *FeedApp) List(page, perPage int, sort, filter string) (*model.Page, error) {
	if perPage <= 0 {
		perPage = a.cfg.Feed.PerPage
	}
	if perPage <= 0 {
		perPage = config.DefaultPerPage
	}
	return a.store.List(feed.ListQuery{Page: page, PerPage: perPage, Sort: sort, Filter: filter})
}

func (a *FeedApp) Show(id string) (*model.Record, error) { return a.store.Get(id) }

func (a *FeedApp) Edit(id, text string) (*model.Record, error) { return a.store.Edit(id, text) }

func (a *FeedApp) Locate(id, location string) (*model.Record, error) {
	return a.store.SetLocation(id, location)
}

func (a *FeedApp) Delete(id string) error { return a.store.Delete(id) }

func (a *FeedApp) Like(id string) (*model.Record, error) { return a.store.Like(id) }

func (a *FeedApp) Unlike(id string) (*model.Record, error) { return a.store.Unlike(id) }

func (a *FeedApp) Comment(id, text string) (*model.Record, error) {
	return a.store.AddComment(id, text)
}

func (a *FeedApp) Uncomment(id, commentID string) (*model.Record, error) {
	return a.store.DeleteComment(id, commentID)
}

func (a *FeedApp) Detach(id, name string) (*model.Record, error) {
	return a.store.RemoveAttachment(id, name)
}

// Close finalizes the operation and closes all resources: it logs the
// outcome, exports metrics when a textfile is configured, and releases the
// substrate.
func (a *FeedApp) Close() error {
	var errs []error

	a.logger.Info("operation finished", "status", a.op.Status, "elapsed", a.op.Elapsed(a.clock.Now()))

	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.closeSub(); err != nil {
		errs = append(errs, fmt.Errorf("closing substrate: %w", err))
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}
