package auth

import "time"

// User is an operator identity. Passwords are stored hashed; the hash never
// leaves the auth package in API responses.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// APIToken is a long-lived credential a user issues for programmatic access.
// Only a SHA-256 hash of the secret portion is persisted; the plaintext is
// returned exactly once at creation time. The stored permission subset is
// authoritative at request time.
type APIToken struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Remark      string     `json:"remark,omitempty"`
	SecretHash  string     `json:"-"`
	Permissions []string   `json:"permissions"`
	Active      bool       `json:"active"`
	RateLimit   int        `json:"rate_limit"` // requests per hour
	AllowedIPs  []string   `json:"allowed_ips,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *APIToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}
