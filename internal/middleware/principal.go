package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/portcullis-auth/portcullis/internal/credential"
)

// Principal captures identity metadata propagated through the request context.
type Principal struct {
	// AccountID is the stable account identifier carried in the token.
	AccountID string
	// Username is the login name carried in the token.
	Username string
	// Roles lists the role codes granted to the account at sign time.
	Roles []string
	// Token is the raw bearer token the principal presented.
	Token string
}

func principalFromPayload(payload credential.Payload, token string) Principal {
	return Principal{
		AccountID: payload.ID,
		Username:  payload.Username,
		Roles:     append([]string(nil), payload.Roles...),
		Token:     token,
	}
}

type principalContextKey struct{}

// SetPrincipal stores the authenticated principal on the context for downstream consumers.
func SetPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// GetPrincipal retrieves the authenticated principal from the context.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}

// HashToken creates a SHA256 hash of a token string. Verified-token cache keys
// are hashes so the cache never holds raw credentials.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
