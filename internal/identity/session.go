package identity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"feed-go/internal/feed"
	"feed-go/internal/model"
)

// TokenKey is the substrate key holding the signed session token.
const TokenKey = "authToken"

// ErrNoSecret is returned when a session is issued without a signing secret.
var ErrNoSecret = errors.New("session secret not configured")

type sessionClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// SessionResolver implements feed.IdentityResolver from an HS256 session
// token kept in the substrate. The resolved identity is cached until the
// session changes through Issue or Clear, or the token expires.
type SessionResolver struct {
	substrate feed.Substrate
	secret    []byte
	ttl       time.Duration
	clock     feed.Clock
	logger    feed.Logger

	mu      sync.Mutex
	loaded  bool
	current *model.Identity
	expires time.Time
}

var _ feed.IdentityResolver = (*SessionResolver)(nil)

func NewSessionResolver(substrate feed.Substrate, secret []byte, ttl time.Duration, clock feed.Clock, logger feed.Logger) *SessionResolver {
	return &SessionResolver{
		substrate: substrate,
		secret:    secret,
		ttl:       ttl,
		clock:     clock,
		logger:    logger,
	}
}

// CurrentIdentity returns the identity of the stored session, or nil when
// there is no valid session. Expired, tampered or malformed tokens count as
// no session. Only a substrate failure is reported as an error.
func (r *SessionResolver) CurrentIdentity() (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		if err := r.load(); err != nil {
			return nil, err
		}
	}
	if r.current == nil || !r.clock.Now().Before(r.expires) {
		return nil, nil
	}
	id := *r.current
	return &id, nil
}

func (r *SessionResolver) load() error {
	raw, ok, err := r.substrate.Get(TokenKey)
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	r.loaded = true
	r.current = nil
	if !ok || raw == "" {
		return nil
	}

	claims, err := r.parse(raw)
	if err != nil {
		r.logger.Debug("ignoring invalid session token", "error", err)
		return nil
	}
	r.current = &model.Identity{
		ID:       claims.Subject,
		Email:    claims.Email,
		Username: claims.Username,
		Avatar:   claims.Avatar,
	}
	r.expires = claims.ExpiresAt.Time
	return nil
}

func (r *SessionResolver) parse(raw string) (*sessionClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session claims")
	}
	return claims, nil
}

// Issue signs a session for id, stores it and makes id the current identity.
func (r *SessionResolver) Issue(id model.Identity) error {
	if len(r.secret) == 0 {
		return ErrNoSecret
	}

	now := r.clock.Now()
	expires := now.Add(r.ttl)
	claims := sessionClaims{
		Email:    id.Email,
		Username: id.Username,
		Avatar:   id.Avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return fmt.Errorf("signing session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.substrate.Set(TokenKey, signed); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	r.loaded = true
	r.current = &id
	// NumericDate has second precision; match what a reload would see.
	r.expires = claims.ExpiresAt.Time
	return nil
}

// Clear removes the stored session.
func (r *SessionResolver) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.substrate.Delete(TokenKey); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	r.loaded = true
	r.current = nil
	return nil
}
