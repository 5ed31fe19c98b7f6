package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
)

func claimsFor(uid, subject, issuer string, ttl time.Duration) Claims {
	return Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
}

const (
	testSecret  = "0123456789abcdef0123456789abcdef"
	otherSecret = "fedcba9876543210fedcba9876543210"
)

func newVerifier(t *testing.T, secret, issuer string) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(secret, issuer)
	require.NoError(t, err)
	return v
}

func TestJWTVerifier_Verify(t *testing.T) {
	v := newVerifier(t, testSecret, "task-relay")
	ctx := context.Background()

	token, err := v.Sign(claimsFor("user-1", "", "task-relay", time.Hour))
	require.NoError(t, err)
	uid, err := v.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)

	token, err = v.Sign(claimsFor("", "user-2", "task-relay", time.Hour))
	require.NoError(t, err)
	uid, err = v.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", uid, "falls back to subject")
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := newVerifier(t, testSecret, "task-relay")
	other := newVerifier(t, otherSecret, "task-relay")
	ctx := context.Background()

	expired, _ := v.Sign(claimsFor("user-1", "", "task-relay", -time.Minute))
	wrongIssuer, _ := v.Sign(claimsFor("user-1", "", "someone-else", time.Hour))
	wrongKey, _ := other.Sign(claimsFor("user-1", "", "task-relay", time.Hour))
	noUID, _ := v.Sign(claimsFor("", "", "task-relay", time.Hour))
	noExpiry, _ := v.Sign(Claims{UID: "user-1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "task-relay"}})

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claimsFor("user-1", "", "task-relay", time.Hour)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"wrong key":    wrongKey,
		"no uid":       noUID,
		"no expiry":    noExpiry,
		"alg none":     none,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(ctx, token)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
			assert.Equal(t, 401, apperrors.StatusCode(err))
		})
	}
}

func TestNewJWTVerifier_WeakSecret(t *testing.T) {
	for _, secret := range []string{"", "short", testSecret[:MinSecretLength-1]} {
		v, err := NewJWTVerifier(secret, "")
		assert.ErrorIs(t, err, errWeakSecret, "secret %q", secret)
		assert.Nil(t, v)
	}
}

func TestJWTVerifier_RejectsEmptyKeyTokens(t *testing.T) {
	v := newVerifier(t, testSecret, "")

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor("", "victim", "", time.Hour)).
		SignedString([]byte{})
	require.NoError(t, err)

	uid, err := v.Verify(context.Background(), forged)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Empty(t, uid)
}
