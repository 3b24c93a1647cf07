package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Hasher abstracts the credential hashing primitive so the algorithm can be
// upgraded without touching callers. Verify must be constant-time.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) error
}

// BcryptHasher hashes with bcrypt (per-record salt included in the digest).
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given cost; values outside the
// bcrypt range fall back to the library default.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return BcryptHasher{cost: cost}
}

func (h BcryptHasher) Hash(secret string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret is empty")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (h BcryptHasher) Verify(hash, secret string) error {
	if hash == "" {
		return errors.New("hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}
