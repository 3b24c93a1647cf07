package httpapi

import (
	"errors"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"camstack.org/internal/auth"
	"camstack.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	tokenLimiterCacheSize = 4096
	secondsPerHour        = 3600
)

// gate resolves the Authorization header to a principal and enforces the
// per-token request budget. The csp_ prefix routes a credential to API-token
// validation; everything else is treated as a session JWT.
type gate struct {
	sessions *auth.Sessions
	tokens   *auth.Tokens
	users    auth.UserStore

	// limiters caches one token bucket per API token id. Evicted entries
	// simply restart with a full bucket.
	limiters *lru.Cache[string, *rate.Limiter]
}

func newGate(sessions *auth.Sessions, tokens *auth.Tokens, users auth.UserStore) (*gate, error) {
	limiters, err := lru.New[string, *rate.Limiter](tokenLimiterCacheSize)
	if err != nil {
		return nil, err
	}
	return &gate{sessions: sessions, tokens: tokens, users: users, limiters: limiters}, nil
}

// authenticate resolves the request's credential to a principal. It returns
// a zero principal and false after writing the error response itself.
func (g *gate) authenticate(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	credential, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return auth.Principal{}, false
	}

	if strings.HasPrefix(credential, auth.TokenPrefix) {
		return g.authenticateToken(w, r, credential)
	}
	return g.authenticateSession(w, r, credential)
}

func (g *gate) authenticateToken(w http.ResponseWriter, r *http.Request, credential string) (auth.Principal, bool) {
	token, owner, err := g.tokens.Validate(r.Context(), credential, clientIP(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			obs.CountTokenValidation("rejected")
			writeError(w, r, http.StatusUnauthorized, "invalid token")
		} else {
			writeError(w, r, http.StatusInternalServerError, "authentication error")
		}
		return auth.Principal{}, false
	}
	if !g.allowTokenRequest(token.ID, token.RateLimit) {
		obs.CountTokenValidation("throttled")
		w.Header().Set("Retry-After", "60")
		writeError(w, r, http.StatusTooManyRequests, "token rate limit exceeded")
		return auth.Principal{}, false
	}
	obs.CountTokenValidation("success")
	return auth.TokenPrincipal(token, owner), true
}

func (g *gate) authenticateSession(w http.ResponseWriter, r *http.Request, credential string) (auth.Principal, bool) {
	claims, err := g.sessions.VerifyAccess(credential)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return auth.Principal{}, false
	}
	// Permissions derive from the user's current role, not the role claim
	// frozen at issuance.
	user, err := g.users.Find(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
		} else {
			writeError(w, r, http.StatusInternalServerError, "authentication error")
		}
		return auth.Principal{}, false
	}
	if !user.Active {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return auth.Principal{}, false
	}
	return auth.UserPrincipal(user), true
}

// allowTokenRequest enforces the token's requests-per-hour budget.
func (g *gate) allowTokenRequest(tokenID string, perHour int) bool {
	if perHour <= 0 {
		return true
	}
	lim, ok := g.limiters.Get(tokenID)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(perHour)/secondsPerHour), perHour)
		g.limiters.Add(tokenID, lim)
	}
	return lim.Allow()
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
