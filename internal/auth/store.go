package auth

import (
	"context"
	"time"
)

// UserStore is durable storage for users. Username and email uniqueness is
// enforced at write time; a duplicate create fails with ErrConflict wrapped
// with the colliding field.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// TokenStore is durable storage for API tokens.
type TokenStore interface {
	Create(ctx context.Context, t *APIToken) error
	Find(ctx context.Context, id string) (*APIToken, error)
	List(ctx context.Context) ([]*APIToken, error)
	ListByUser(ctx context.Context, userID string) ([]*APIToken, error)
	Update(ctx context.Context, t *APIToken) error
	Delete(ctx context.Context, id string) error
	MarkRevoked(ctx context.Context, id string) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	// RevokeExpired clears the active flag of every active token past its
	// expiry. Partial failure is safe: revocation is idempotent and the
	// sweep can simply run again.
	RevokeExpired(ctx context.Context, now time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

// Store bundles the credential stores behind one implementation.
type Store interface {
	Users() UserStore
	Tokens() TokenStore
}
