package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"camstack.org/internal/ids"
)

// TokenPrefix is the transport convention that lets the access gate tell
// API-token auth from session auth before attempting validation.
const TokenPrefix = "csp_"

const defaultRateLimit = 1000 // requests per hour

// Tokens issues and validates long-lived API tokens. The plaintext secret
// has the form csp_<id>_<secret>: the id portion is not secret and lets
// validation look the record up directly instead of scanning the table; the
// secret portion is compared against a stored SHA-256 digest in constant
// time.
type Tokens struct {
	store TokenStore
	users UserStore
	now   func() time.Time
}

// TokensOption configures Tokens.
type TokensOption func(*Tokens)

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokensOption {
	return func(t *Tokens) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokens constructs the token issuer.
func NewTokens(store TokenStore, users UserStore, opts ...TokensOption) *Tokens {
	t := &Tokens{store: store, users: users, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CreateTokenInput carries the caller-supplied token attributes.
type CreateTokenInput struct {
	Name        string
	Remark      string
	Permissions []string
	RateLimit   int
	AllowedIPs  []string
	ExpiresAt   *time.Time
}

// Create issues a token scoped to a subset of the owner's own role-derived
// permissions. The returned plaintext is never retrievable again.
func (t *Tokens) Create(ctx context.Context, owner *User, in CreateTokenInput) (*APIToken, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, "", fmt.Errorf("%w: token name is required", ErrInvalidInput)
	}
	perms, err := checkPermissionSubset(owner.Role, in.Permissions)
	if err != nil {
		return nil, "", err
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(t.now()) {
		return nil, "", fmt.Errorf("%w: expiry must be in the future", ErrInvalidInput)
	}
	rateLimit := in.RateLimit
	if rateLimit <= 0 {
		rateLimit = defaultRateLimit
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, "", err
	}
	secret := hex.EncodeToString(secretBytes)

	token := &APIToken{
		ID:          ids.New(),
		UserID:      owner.ID,
		Name:        name,
		Remark:      strings.TrimSpace(in.Remark),
		SecretHash:  hashTokenSecret(secret),
		Permissions: perms,
		Active:      true,
		RateLimit:   rateLimit,
		AllowedIPs:  normalizeIPs(in.AllowedIPs),
	}
	if in.ExpiresAt != nil {
		exp := in.ExpiresAt.UTC()
		token.ExpiresAt = &exp
	}
	if err := t.store.Create(ctx, token); err != nil {
		return nil, "", err
	}
	plain := TokenPrefix + token.ID + "_" + secret
	return token, plain, nil
}

// Validate resolves a presented secret to its token record. An expired
// match is revoked as a side effect and rejected; a successful validation
// updates the last-used timestamp (last-writer-wins, informational only).
func (t *Tokens) Validate(ctx context.Context, presented, remoteIP string) (*APIToken, *User, error) {
	id, secret, err := splitPlaintext(presented)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	token, err := t.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if !token.Active {
		return nil, nil, ErrInvalidToken
	}
	if token.Expired(t.now()) {
		_ = t.store.MarkRevoked(ctx, token.ID)
		return nil, nil, ErrInvalidToken
	}
	if !compareTokenSecret(token.SecretHash, secret) {
		return nil, nil, ErrInvalidToken
	}
	if !ipAllowed(token.AllowedIPs, remoteIP) {
		return nil, nil, ErrInvalidToken
	}
	owner, err := t.users.Find(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if !owner.Active {
		return nil, nil, ErrInvalidToken
	}
	_ = t.store.TouchLastUsed(ctx, token.ID, t.now())
	return token, owner, nil
}

// TokenUpdate carries a partial update; nil fields are left unchanged.
type TokenUpdate struct {
	Name        *string
	Remark      *string
	Permissions []string
	RateLimit   *int
	AllowedIPs  []string
	ExpiresAt   *time.Time
}

// Update applies a partial update. Only the owner or an admin may update;
// the permission-subset rule is re-validated when permissions change.
func (t *Tokens) Update(ctx context.Context, id string, actor Principal, upd TokenUpdate) (*APIToken, error) {
	token, err := t.authorize(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: token name is required", ErrInvalidInput)
		}
		token.Name = name
	}
	if upd.Remark != nil {
		token.Remark = strings.TrimSpace(*upd.Remark)
	}
	if upd.Permissions != nil {
		owner, err := t.users.Find(ctx, token.UserID)
		if err != nil {
			return nil, err
		}
		perms, err := checkPermissionSubset(owner.Role, upd.Permissions)
		if err != nil {
			return nil, err
		}
		token.Permissions = perms
	}
	if upd.RateLimit != nil {
		if *upd.RateLimit <= 0 {
			return nil, fmt.Errorf("%w: rate limit must be positive", ErrInvalidInput)
		}
		token.RateLimit = *upd.RateLimit
	}
	if upd.AllowedIPs != nil {
		token.AllowedIPs = normalizeIPs(upd.AllowedIPs)
	}
	if upd.ExpiresAt != nil {
		if !upd.ExpiresAt.After(t.now()) {
			return nil, fmt.Errorf("%w: expiry must be in the future", ErrInvalidInput)
		}
		exp := upd.ExpiresAt.UTC()
		token.ExpiresAt = &exp
	}
	if err := t.store.Update(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// Revoke clears the active flag. The row persists for the audit trail and
// the operation is idempotent.
func (t *Tokens) Revoke(ctx context.Context, id string, actor Principal) error {
	if _, err := t.authorize(ctx, id, actor); err != nil {
		return err
	}
	return t.store.MarkRevoked(ctx, id)
}

// Delete removes the row entirely.
func (t *Tokens) Delete(ctx context.Context, id string, actor Principal) error {
	if _, err := t.authorize(ctx, id, actor); err != nil {
		return err
	}
	return t.store.Delete(ctx, id)
}

// Get returns a single token, owner-or-admin only.
func (t *Tokens) Get(ctx context.Context, id string, actor Principal) (*APIToken, error) {
	return t.authorize(ctx, id, actor)
}

// ListForActor returns all tokens for admins and the actor's own otherwise.
func (t *Tokens) ListForActor(ctx context.Context, actor Principal) ([]*APIToken, error) {
	if actor.IsAdmin() {
		return t.store.List(ctx)
	}
	return t.store.ListByUser(ctx, actor.UserID)
}

// CleanupExpired batch-revokes all active tokens past expiry. Safe to run
// repeatedly.
func (t *Tokens) CleanupExpired(ctx context.Context) (int, error) {
	return t.store.RevokeExpired(ctx, t.now())
}

func (t *Tokens) authorize(ctx context.Context, id string, actor Principal) (*APIToken, error) {
	token, err := t.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Kind != ActorUser {
		return nil, ErrForbidden
	}
	if token.UserID != actor.UserID && actor.Role != RoleAdmin {
		return nil, ErrForbidden
	}
	return token, nil
}

func checkPermissionSubset(ownerRole Role, requested []string) ([]string, error) {
	held := RolePermissions(ownerRole)
	seen := make(map[string]struct{}, len(requested))
	var perms []string
	for _, p := range requested {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		if !KnownPermission(p) {
			return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, p)
		}
		if _, ok := held[p]; !ok {
			return nil, fmt.Errorf("%w: permission %q exceeds the owner's role", ErrInvalidInput, p)
		}
		seen[p] = struct{}{}
		perms = append(perms, p)
	}
	if len(perms) == 0 {
		return nil, fmt.Errorf("%w: at least one permission is required", ErrInvalidInput)
	}
	return perms, nil
}

func splitPlaintext(presented string) (id, secret string, err error) {
	presented = strings.TrimSpace(presented)
	if !strings.HasPrefix(presented, TokenPrefix) {
		return "", "", errors.New("missing token prefix")
	}
	rest := presented[len(TokenPrefix):]
	id, secret, ok := strings.Cut(rest, "_")
	if !ok || id == "" || secret == "" {
		return "", "", errors.New("malformed token")
	}
	return id, secret, nil
}

func hashTokenSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func compareTokenSecret(expectedHash, secret string) bool {
	actual := hashTokenSecret(secret)
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}

func ipAllowed(allowed []string, remoteIP string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, ip := range allowed {
		if ip == remoteIP {
			return true
		}
	}
	return false
}

func normalizeIPs(ips []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}
		out = append(out, ip)
	}
	return out
}
