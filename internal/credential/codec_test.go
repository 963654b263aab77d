package credential

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portcullis-auth/portcullis/internal/autherr"
)

var testSecret = []byte("unit-test-signing-secret")

func newTestCodec(t *testing.T, lifetime time.Duration, opts ...Option) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret, lifetime, opts...)
	require.NoError(t, err)
	return codec
}

func TestNewCodec_Validation(t *testing.T) {
	_, err := NewCodec(nil, time.Hour)
	require.Error(t, err)

	_, err = NewCodec(testSecret, 0)
	require.Error(t, err)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	payload := Payload{
		ID:       "acct-42",
		Username: "alice",
		Roles:    []string{"buyer", "merchant"},
		Extra:    map[string]any{"tenant": "north"},
	}

	token, expiresAt, err := codec.Sign(payload)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)
	assert.InDelta(t, time.Now().Add(time.Hour).Unix(), expiresAt, 2)

	got, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, payload.ID, got.ID)
	assert.Equal(t, payload.Username, got.Username)
	assert.Equal(t, payload.Roles, got.Roles)
	assert.Equal(t, expiresAt, got.ExpiresAt)
	assert.Equal(t, "north", got.Extra["tenant"])
}

func TestCodec_EmptyRoles(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	token, _, err := codec.Sign(Payload{ID: "acct-1", Username: "bob"})
	require.NoError(t, err)

	got, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Empty(t, got.Roles)
}

func TestCodec_TimeVariantTokens(t *testing.T) {
	now := time.Now()
	first := newTestCodec(t, time.Hour, WithClock(func() time.Time { return now }))
	second := newTestCodec(t, time.Hour, WithClock(func() time.Time { return now.Add(time.Second) }))

	payload := Payload{ID: "acct-1", Username: "alice"}

	tokenA, _, err := first.Sign(payload)
	require.NoError(t, err)
	tokenB, _, err := second.Sign(payload)
	require.NoError(t, err)

	assert.NotEqual(t, tokenA, tokenB)
}

func TestCodec_TamperDetection(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	token, _, err := codec.Sign(Payload{ID: "acct-1", Username: "alice"})
	require.NoError(t, err)

	segments := strings.Split(token, ".")
	require.Len(t, segments, 3)

	// Flip every character of the signature segment in turn; each variant
	// must be rejected as an invalid credential.
	sig := segments[2]
	for i := 0; i < len(sig); i++ {
		flipped := []byte(sig)
		if flipped[i] == 'A' {
			flipped[i] = 'B'
		} else {
			flipped[i] = 'A'
		}
		if string(flipped) == sig {
			continue
		}
		tampered := segments[0] + "." + segments[1] + "." + string(flipped)

		_, err := codec.Verify(tampered)
		require.Error(t, err, "flipped signature byte %d must not verify", i)
		assert.Equal(t, autherr.KindInvalidCredential, autherr.KindOf(err))
	}
}

func TestCodec_Expiry(t *testing.T) {
	issued := time.Now()
	clock := issued
	codec := newTestCodec(t, time.Second, WithClock(func() time.Time { return clock }))

	token, expiresAt, err := codec.Sign(Payload{ID: "acct-1", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, issued.Unix()+1, expiresAt)

	// Immediately after signing the credential verifies.
	_, err = codec.Verify(token)
	require.NoError(t, err)

	// Once the lifetime elapses it does not.
	clock = issued.Add(3 * time.Second)
	_, err = codec.Verify(token)
	require.Error(t, err)

	var authErr *autherr.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, autherr.CodeTokenExpired, authErr.Code)
}

func TestCodec_NotYetValid(t *testing.T) {
	now := time.Now()
	signer := newTestCodec(t, time.Hour, WithClock(func() time.Time { return now.Add(time.Hour) }))
	verifier := newTestCodec(t, time.Hour, WithClock(func() time.Time { return now }))

	// Signed an hour in the verifier's future: iat is ahead of the clock.
	token, _, err := signer.Sign(Payload{ID: "acct-1"})
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.Error(t, err)

	var authErr *autherr.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, autherr.CodeTokenNotActive, authErr.Code)
}

func TestCodec_RejectsForeignIdentity(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	claims := jwt.MapClaims{
		"iss": "someone-else",
		"aud": ServiceName,
		"sub": ServiceName,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
		"id":  "acct-1",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = codec.Verify(token)
	require.Error(t, err)

	var authErr *autherr.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, autherr.CodeTokenVerification, authErr.Code)
}

func TestCodec_Malformed(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	for _, token := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		_, err := codec.Verify(token)
		require.Error(t, err, "token %q", token)

		var authErr *autherr.Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, autherr.CodeTokenFormatError, authErr.Code)
	}
}

func TestCodec_DecodeSkipsValidation(t *testing.T) {
	clock := time.Now()
	codec := newTestCodec(t, time.Second, WithClock(func() time.Time { return clock }))

	token, _, err := codec.Sign(Payload{ID: "acct-1", Username: "alice"})
	require.NoError(t, err)

	// Expired tokens still decode: Decode performs no claim validation.
	clock = clock.Add(time.Minute)
	got, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", got.ID)

	_, err = codec.Decode("garbage")
	require.Error(t, err)
	assert.Equal(t, autherr.KindInvalidCredential, autherr.KindOf(err))
}
