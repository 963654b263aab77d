package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/portcullis-auth/portcullis/internal/autherr"
	"github.com/portcullis-auth/portcullis/internal/credential"
)

const bearerPrefix = "Bearer "

// defaultVerifiedCacheSize bounds the verified-token cache.
const defaultVerifiedCacheSize = 4096

// verifiedEntry pairs a verified payload with the token's expiry. The LRU's
// own TTL is measured from insertion, so hits must re-check the token expiry
// to avoid serving a credential past its exp claim.
type verifiedEntry struct {
	payload   credential.Payload
	expiresAt int64
}

// Skipper defines a function to skip authentication for matching requests.
type Skipper func(*http.Request) bool

// ErrorResponder writes authentication failures to the response writer.
type ErrorResponder func(http.ResponseWriter, *http.Request, error)

type authnOptions struct {
	skipper        Skipper
	errorResponder ErrorResponder
	cacheSize      int
}

// AuthnOption customises the behaviour of the authentication middleware.
type AuthnOption func(*authnOptions)

// WithSkipper overrides the default skipper used by the middleware.
func WithSkipper(skipper Skipper) AuthnOption {
	return func(o *authnOptions) {
		if skipper != nil {
			o.skipper = skipper
		}
	}
}

// WithErrorResponder overrides the default error responder.
func WithErrorResponder(responder ErrorResponder) AuthnOption {
	return func(o *authnOptions) {
		if responder != nil {
			o.errorResponder = responder
		}
	}
}

// WithVerifiedCacheSize overrides the verified-token cache capacity.
// A size of zero disables the cache.
func WithVerifiedCacheSize(size int) AuthnOption {
	return func(o *authnOptions) {
		o.cacheSize = size
	}
}

// PrefixSkipper builds a Skipper that bypasses authentication for requests
// whose path starts with any of the given prefixes. OPTIONS requests are
// always skipped so CORS preflights pass through.
func PrefixSkipper(prefixes []string) Skipper {
	copied := append([]string(nil), prefixes...)
	return func(r *http.Request) bool {
		if r == nil {
			return false
		}
		if r.Method == http.MethodOptions {
			return true
		}
		for _, prefix := range copied {
			if prefix != "" && strings.HasPrefix(r.URL.Path, prefix) {
				return true
			}
		}
		return false
	}
}

// NewAuthn constructs a chi-compatible middleware that extracts the bearer
// token from the Authorization header, verifies it with codec, and stores the
// resulting principal on the request context. Verification results are held
// in an expiring LRU keyed by token hash so hot tokens skip signature checks.
//
// Requests matched by the skipper pass through without a principal; the
// authorization layer treats them as anonymous.
func NewAuthn(codec *credential.Codec, opts ...AuthnOption) func(http.Handler) http.Handler {
	o := authnOptions{
		skipper:        func(*http.Request) bool { return false },
		errorResponder: defaultErrorResponder,
		cacheSize:      defaultVerifiedCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var verified *expirable.LRU[string, verifiedEntry]
	if o.cacheSize > 0 {
		verified = expirable.NewLRU[string, verifiedEntry](o.cacheSize, nil, codec.Lifetime())
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if o.skipper(r) {
				next.ServeHTTP(w, r)
				return
			}

			token, err := bearerToken(r)
			if err != nil {
				o.errorResponder(w, r, err)
				return
			}

			key := HashToken(token)
			if verified != nil {
				if entry, ok := verified.Get(key); ok && time.Now().Unix() < entry.expiresAt {
					ctx := SetPrincipal(r.Context(), principalFromPayload(entry.payload, token))
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			payload, err := codec.Verify(token)
			if err != nil {
				o.errorResponder(w, r, err)
				return
			}
			if verified != nil {
				verified.Add(key, verifiedEntry{payload: *payload, expiresAt: payload.ExpiresAt})
			}

			ctx := SetPrincipal(r.Context(), principalFromPayload(*payload, token))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header. Each failure
// mode carries its own machine-readable code.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", autherr.InvalidCredential(autherr.CodeMissingAuthToken, "authorization header is missing")
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", autherr.InvalidCredential(autherr.CodeInvalidAuthTokenFormat, "authorization header must use the Bearer scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", autherr.InvalidCredential(autherr.CodeEmptyAuthToken, "bearer token is empty")
	}
	return token, nil
}

func defaultErrorResponder(w http.ResponseWriter, _ *http.Request, err error) {
	WriteError(w, err)
}
