// Package credential signs, verifies, and decodes the session credentials
// issued by the login flow. All functions are pure with respect to process
// state; a Codec only holds immutable configuration.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/portcullis-auth/portcullis/internal/autherr"
)

// ServiceName is the fixed identity bound into every credential's
// iss, aud, and sub claims.
const ServiceName = "portcullis"

// reservedClaims are never copied into Payload.Extra on decode.
var reservedClaims = map[string]struct{}{
	"iss": {}, "aud": {}, "sub": {}, "exp": {}, "iat": {},
	"id": {}, "username": {}, "role": {},
}

// Payload carries the identity claims bound into a signed credential.
// ID is immutable for the credential's lifetime; Roles reflect role
// membership at issuance time only. ExpiresAt is populated on Verify and
// Decode; Sign ignores it and computes its own expiry.
type Payload struct {
	ID        string
	Username  string
	Roles     []string
	ExpiresAt int64
	Extra     map[string]any
}

// Codec signs and verifies credentials with a single shared symmetric secret.
type Codec struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// Option customises Codec construction.
type Option func(*Codec)

// WithClock overrides the time source, used by expiry tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a Codec. lifetime is the process-wide credential lifetime;
// expiry is always issued_at + lifetime.
func NewCodec(secret []byte, lifetime time.Duration, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("credential codec requires a signing secret")
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("credential lifetime must be positive, got %s", lifetime)
	}

	c := &Codec{
		secret:   secret,
		lifetime: lifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lifetime returns the configured credential lifetime.
func (c *Codec) Lifetime() time.Duration { return c.lifetime }

// Sign encodes payload into a signed token. The returned expiry is computed
// here as unix seconds rather than read back from the JWT library so that it
// stays stable and externally comparable (the session cache stores it
// verbatim and uses it as the entry TTL anchor).
func (c *Codec) Sign(payload Payload) (token string, expiresAt int64, err error) {
	now := c.now()
	expiresAt = now.Unix() + int64(c.lifetime/time.Second)

	claims := jwt.MapClaims{
		"iss":      ServiceName,
		"aud":      ServiceName,
		"sub":      ServiceName,
		"iat":      now.Unix(),
		"exp":      expiresAt,
		"id":       payload.ID,
		"username": payload.Username,
		"role":     payload.Roles,
	}
	for k, v := range payload.Extra {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		claims[k] = v
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign credential: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses and validates token: signature, fixed service identity
// (iss/aud/sub), and the clock-bound claims. On failure it returns an
// InvalidCredential error whose Code identifies the rejection reason.
func (c *Codec) Verify(token string) (*Payload, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ServiceName),
		jwt.WithAudience(ServiceName),
		jwt.WithSubject(ServiceName),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)

	parsed, err := parser.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classifyVerifyError(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, autherr.InvalidCredential(autherr.CodeTokenVerification, "credential claims invalid")
	}
	return payloadFromClaims(claims), nil
}

// Decode extracts the payload without any signature or claim validation.
// Callers must never treat the result as trusted; it exists for diagnostics
// and for introspecting tokens whose authenticity is established elsewhere.
func (c *Codec) Decode(token string) (*Payload, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, autherr.Wrap(
			autherr.InvalidCredential(autherr.CodeTokenFormatError, "credential is structurally malformed"), err)
	}
	return payloadFromClaims(claims), nil
}

func classifyVerifyError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return autherr.Wrap(
			autherr.InvalidCredential(autherr.CodeTokenFormatError, "credential is structurally malformed"), err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return autherr.Wrap(
			autherr.InvalidCredential(autherr.CodeTokenExpired, "credential has expired"), err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return autherr.Wrap(
			autherr.InvalidCredential(autherr.CodeTokenNotActive, "credential is not yet valid"), err)
	default:
		// Signature mismatch and service-identity claim mismatches land here.
		return autherr.Wrap(
			autherr.InvalidCredential(autherr.CodeTokenVerification, "credential verification failed"), err)
	}
}

func payloadFromClaims(claims jwt.MapClaims) *Payload {
	p := &Payload{}
	if id, ok := claims["id"].(string); ok {
		p.ID = id
	}
	if username, ok := claims["username"].(string); ok {
		p.Username = username
	}
	if exp, ok := claims["exp"].(float64); ok {
		p.ExpiresAt = int64(exp)
	}
	p.Roles = stringSliceClaim(claims["role"])

	for k, v := range claims {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = v
	}
	return p
}

func stringSliceClaim(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
