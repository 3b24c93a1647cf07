package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer     = "camstack"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	minPasswordLength = 8
)

// Claims are the signed session credential contents.
type Claims struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // access token lifetime, seconds
}

// Sessions authenticates username/password pairs and issues signed,
// tamper-evident credentials. Signature plus expiry is the sole validity
// test for an access credential; there is no server-side revocation list,
// which is why the access TTL stays short.
type Sessions struct {
	users      UserStore
	hasher     Hasher
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// SessionsOption configures Sessions.
type SessionsOption func(*Sessions)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) SessionsOption {
	return func(s *Sessions) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithAccessTTL configures the access credential lifetime.
func WithAccessTTL(ttl time.Duration) SessionsOption {
	return func(s *Sessions) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures the refresh credential lifetime.
func WithRefreshTTL(ttl time.Duration) SessionsOption {
	return func(s *Sessions) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) SessionsOption {
	return func(s *Sessions) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSessions constructs the session issuer. The signing secret is required.
func NewSessions(users UserStore, hasher Hasher, secret []byte, opts ...SessionsOption) (*Sessions, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if hasher == nil {
		return nil, errors.New("auth: hasher is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	s := &Sessions{
		users:      users,
		hasher:     hasher,
		secret:     secret,
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the configured access credential lifetime.
func (s *Sessions) AccessTTL() time.Duration { return s.accessTTL }

// Login authenticates the credentials and issues a fresh pair. Unknown
// username, inactive user and password mismatch all fail with the same
// ErrUnauthorized so callers cannot enumerate accounts.
func (s *Sessions) Login(ctx context.Context, username, password string) (TokenPair, *User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return TokenPair{}, nil, ErrUnauthorized
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrUnauthorized
		}
		return TokenPair{}, nil, err
	}
	if !user.Active {
		return TokenPair{}, nil, ErrUnauthorized
	}
	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		return TokenPair{}, nil, ErrUnauthorized
	}
	pair, err := s.mint(user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Refresh validates a refresh credential and issues a new pair. The user is
// re-fetched so deactivation and role changes since issuance take effect
// here; the refresh credential itself is rotated by re-issuance.
func (s *Sessions) Refresh(ctx context.Context, refreshToken string) (TokenPair, *User, error) {
	claims, err := s.verify(refreshToken, tokenTypeRefresh)
	if err != nil {
		return TokenPair{}, nil, ErrUnauthorized
	}
	user, err := s.users.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrUnauthorized
		}
		return TokenPair{}, nil, err
	}
	if !user.Active {
		return TokenPair{}, nil, ErrUnauthorized
	}
	pair, err := s.mint(user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// VerifyAccess checks an access credential and returns its claims. The
// caller resolves the subject to a user for a fresh permission set.
func (s *Sessions) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, tokenTypeAccess)
}

// ChangePassword re-verifies the current password before accepting the new
// one. Existing sessions stay valid until natural expiry.
func (s *Sessions) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Verify(user.PasswordHash, current); err != nil {
		return fmt.Errorf("%w: current password does not match", ErrInvalidInput)
	}
	if len(next) < minPasswordLength {
		return fmt.Errorf("%w: new password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.users.Update(ctx, user)
}

func (s *Sessions) mint(user *User) (TokenPair, error) {
	now := s.now().UTC()
	access, err := s.sign(user, tokenTypeAccess, now, now.Add(s.accessTTL))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(user, tokenTypeRefresh, now, now.Add(s.refreshTTL))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *Sessions) sign(user *User, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		Username:  user.Username,
		Role:      string(user.Role),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Sessions) verify(token, wantType string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
