// Package identity manages accounts and login sessions. Its SessionResolver
// is what the feed store consults to learn who is acting.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"feed-go/internal/feed"
	"feed-go/internal/model"
	"feed-go/internal/query"
)

// UsersKey is the substrate key holding the account list.
const UsersKey = "users"

// DefaultUsersPerPage is the page size of List when perPage is not positive.
const DefaultUsersPerPage = 20

// account is the stored form of an identity. It never leaves this package.
type account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	Avatar       string    `json:"avatar,omitempty"`     // file name
	AvatarData   string    `json:"avatarData,omitempty"` // encoded content
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

func (a *account) identity() *model.Identity {
	return &model.Identity{ID: a.ID, Email: a.Email, Username: a.Username, Avatar: a.Avatar}
}

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
	Username        string `json:"username" validate:"required,min=3,max=30,alphanum"`
}

type profileRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=30,alphanum"`
}

// Options tunes a Directory.
type Options struct {
	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
}

// Directory is the account registry. Accounts live in the substrate under
// UsersKey; the current session is tracked by the embedded SessionResolver.
type Directory struct {
	substrate feed.Substrate
	sessions  *SessionResolver
	encoder   feed.AttachmentEncoder
	logger    feed.Logger
	clock     feed.Clock
	idgen     feed.IDGenerator
	cost      int

	mu sync.Mutex
}

// NewDirectory creates a Directory with the provided dependencies.
func NewDirectory(substrate feed.Substrate, sessions *SessionResolver, encoder feed.AttachmentEncoder, logger feed.Logger, clock feed.Clock, idgen feed.IDGenerator, opts Options) *Directory {
	cost := opts.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Directory{
		substrate: substrate,
		sessions:  sessions,
		encoder:   encoder,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		cost:      cost,
	}
}

// Sessions returns the resolver the feed store should consult.
func (d *Directory) Sessions() *SessionResolver {
	return d.sessions
}

// Register creates an account. It does not log the new account in.
func (d *Directory) Register(in RegisterInput) (*model.Identity, error) {
	const op = "register"
	if err := feed.Validate(op, in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), d.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	accounts, err := d.load(op)
	if err != nil {
		return nil, err
	}
	if findBy(accounts, func(a *account) bool { return strings.EqualFold(a.Email, in.Email) }) != nil {
		return nil, &feed.Error{Kind: feed.KindValidation, Op: op, Field: "email", Err: errors.New("email is already registered")}
	}
	if findBy(accounts, func(a *account) bool { return strings.EqualFold(a.Username, in.Username) }) != nil {
		return nil, &feed.Error{Kind: feed.KindValidation, Op: op, Field: "username", Err: errors.New("username is taken")}
	}

	now := d.clock.Now()
	acct := account{
		ID:           d.idgen.New(),
		Email:        strings.ToLower(in.Email),
		Username:     in.Username,
		PasswordHash: string(hash),
		Created:      now,
		Updated:      now,
	}
	accounts = append(accounts, acct)
	if err := d.save(op, accounts); err != nil {
		return nil, err
	}

	d.logger.Info("account registered", "id", acct.ID, "username", acct.Username)
	return acct.identity(), nil
}

// Login verifies the credentials and starts a session. Unknown email and
// wrong password fail the same way.
func (d *Directory) Login(email, password string) (*model.Identity, error) {
	const op = "login"

	d.mu.Lock()
	accounts, err := d.load(op)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	acct := findBy(accounts, func(a *account) bool { return strings.EqualFold(a.Email, email) })
	if acct == nil || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		d.logger.Warn("login rejected", "email", email)
		return nil, &feed.Error{Kind: feed.KindUnauthenticated, Op: op, Err: errors.New("invalid email or password")}
	}

	id := acct.identity()
	if err := d.sessions.Issue(*id); err != nil {
		return nil, &feed.Error{Kind: feed.KindStorage, Op: op, Err: err}
	}
	d.logger.Info("logged in", "id", id.ID)
	return id, nil
}

// Logout ends the current session. Logging out without a session is not an error.
func (d *Directory) Logout() error {
	if err := d.sessions.Clear(); err != nil {
		return &feed.Error{Kind: feed.KindStorage, Op: "logout", Err: err}
	}
	return nil
}

// UpdateProfile changes the current identity's username and/or avatar. An
// empty username or nil avatar leaves that field unchanged. Records already
// published keep the author snapshot taken when they were created.
func (d *Directory) UpdateProfile(username string, avatar feed.Blob) (*model.Identity, error) {
	const op = "profile"

	who, err := d.sessions.CurrentIdentity()
	if err != nil {
		return nil, &feed.Error{Kind: feed.KindStorage, Op: op, Err: err}
	}
	if who == nil {
		return nil, &feed.Error{Kind: feed.KindUnauthenticated, Op: op}
	}
	if err := feed.Validate(op, profileRequest{Username: username}); err != nil {
		return nil, err
	}

	var avatarData string
	if avatar != nil {
		avatarData, err = d.encoder.Encode(avatar)
		if err != nil {
			return nil, &feed.Error{Kind: feed.KindValidation, Op: op, Field: "avatar", Err: err}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	accounts, err := d.load(op)
	if err != nil {
		return nil, err
	}
	acct := findBy(accounts, func(a *account) bool { return a.ID == who.ID })
	if acct == nil {
		return nil, &feed.Error{Kind: feed.KindNotFound, Op: op, ID: who.ID}
	}
	if username != "" && !strings.EqualFold(username, acct.Username) {
		taken := findBy(accounts, func(a *account) bool {
			return a.ID != acct.ID && strings.EqualFold(a.Username, username)
		})
		if taken != nil {
			return nil, &feed.Error{Kind: feed.KindValidation, Op: op, Field: "username", Err: errors.New("username is taken")}
		}
	}

	prev := *acct
	if username != "" {
		acct.Username = username
	}
	if avatar != nil {
		acct.Avatar = avatar.Name()
		acct.AvatarData = avatarData
	}
	acct.Updated = d.clock.Now()

	if err := d.save(op, accounts); err != nil {
		return nil, err
	}

	// The session carries the profile, so both change or neither does.
	id := acct.identity()
	if err := d.sessions.Issue(*id); err != nil {
		*acct = prev
		if rbErr := d.save(op, accounts); rbErr != nil {
			d.logger.Error("profile rollback failed", "id", id.ID, "error", rbErr)
		}
		return nil, &feed.Error{Kind: feed.KindStorage, Op: op, Err: err}
	}
	d.logger.Info("profile updated", "id", id.ID)
	return id, nil
}

// Lookup returns the identity with the given id.
func (d *Directory) Lookup(id string) (*model.Identity, error) {
	const op = "lookup"

	d.mu.Lock()
	defer d.mu.Unlock()

	accounts, err := d.load(op)
	if err != nil {
		return nil, err
	}
	acct := findBy(accounts, func(a *account) bool { return a.ID == id })
	if acct == nil {
		return nil, &feed.Error{Kind: feed.KindNotFound, Op: op, ID: id}
	}
	return acct.identity(), nil
}

// List returns one page of accounts in registration order, narrowed by a
// `username ~ "..."` / `email ~ "..."` filter. perPage <= 0 uses
// DefaultUsersPerPage. A page past the end is empty with correct totals.
func (d *Directory) List(page, perPage int, filter string) (*model.IdentityPage, error) {
	const op = "users"
	if perPage <= 0 {
		perPage = DefaultUsersPerPage
	}
	if page < 1 {
		return nil, &feed.Error{Kind: feed.KindValidation, Op: op, Field: "page", Err: fmt.Errorf("must be at least 1, got %d", page)}
	}

	d.mu.Lock()
	accounts, err := d.load(op)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	f := query.ParseUserFilter(filter)
	matched := make([]model.Identity, 0, len(accounts))
	for i := range accounts {
		if id := accounts[i].identity(); f.Match(id) {
			matched = append(matched, *id)
		}
	}

	start, end, pages, err := query.Bounds(len(matched), page, perPage)
	if err != nil {
		return nil, &feed.Error{Kind: feed.KindValidation, Op: op, Err: err}
	}
	return &model.IdentityPage{
		Items:      matched[start:end],
		Page:       page,
		PerPage:    perPage,
		TotalItems: len(matched),
		TotalPages: pages,
	}, nil
}

func (d *Directory) load(op string) ([]account, error) {
	raw, ok, err := d.substrate.Get(UsersKey)
	if err != nil {
		return nil, &feed.Error{Kind: feed.KindStorage, Op: op, Err: fmt.Errorf("reading %s: %w", UsersKey, err)}
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var accounts []account
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return nil, &feed.Error{Kind: feed.KindStorage, Op: op, Err: fmt.Errorf("decoding %s: %w", UsersKey, err)}
	}
	return accounts, nil
}

func (d *Directory) save(op string, accounts []account) error {
	raw, err := json.Marshal(accounts)
	if err != nil {
		return &feed.Error{Kind: feed.KindStorage, Op: op, Err: fmt.Errorf("encoding %s: %w", UsersKey, err)}
	}
	if err := d.substrate.Set(UsersKey, string(raw)); err != nil {
		return &feed.Error{Kind: feed.KindStorage, Op: op, Err: fmt.Errorf("writing %s: %w", UsersKey, err)}
	}
	return nil
}

func findBy(accounts []account, match func(*account) bool) *account {
	i := slices.IndexFunc(accounts, func(a account) bool { return match(&a) })
	if i < 0 {
		return nil
	}
	return &accounts[i]
}
