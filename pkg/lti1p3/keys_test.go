package lti1p3

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewPlatformKeyHandler(t *testing.T) {
	privPEM, _, _ := genRSAKey(t)

	h, err := NewPlatformKeyHandler(privPEM, "kid-1")
	require.NoError(t, err)
	require.NotNil(t, h.PublicKey())
	require.Equal(t, "kid-1", h.KeyID())
}

func TestNewPlatformKeyHandlerEmptyPEM(t *testing.T) {
	h, err := NewPlatformKeyHandler("", "kid-1")
	require.NoError(t, err)
	require.Nil(t, h.PublicKey())
	require.Empty(t, h.PublicJWKSet().Keys)

	_, err = h.EncodeAndSign(map[string]any{"a": 1}, 0)
	require.ErrorIs(t, err, ErrKeyNotSet)
}

func TestNewPlatformKeyHandlerBadPEM(t *testing.T) {
	_, err := NewPlatformKeyHandler("not a key", "kid-1")
	require.ErrorIs(t, err, ErrInvalidRsaKey)
}

func TestEncodeAndSignRoundTrip(t *testing.T) {
	privPEM, _, _ := genRSAKey(t)
	h, err := NewPlatformKeyHandler(privPEM, "kid-1")
	require.NoError(t, err)
	h.Now = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	token, err := h.EncodeAndSign(map[string]any{"sub": "u1"}, time.Hour)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return h.PublicKey(), nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time {
		return time.Unix(1700000001, 0)
	}))
	require.NoError(t, err)
	require.Equal(t, "kid-1", parsed.Header["kid"])
	require.Equal(t, "u1", claims["sub"])
	require.EqualValues(t, 1700000000, claims["iat"])
	require.EqualValues(t, 1700003600, claims["exp"])
}

func TestEncodeAndSignNoExpiry(t *testing.T) {
	privPEM, _, _ := genRSAKey(t)
	h, err := NewPlatformKeyHandler(privPEM, "kid-1")
	require.NoError(t, err)

	token, err := h.EncodeAndSign(map[string]any{"sub": "u1"}, 0)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return h.PublicKey(), nil
	})
	require.NoError(t, err)
	_, hasExp := claims["exp"]
	require.False(t, hasExp)
}

func TestEncodeAndSignDoesNotMutateInput(t *testing.T) {
	privPEM, _, _ := genRSAKey(t)
	h, err := NewPlatformKeyHandler(privPEM, "kid-1")
	require.NoError(t, err)

	msg := map[string]any{"sub": "u1", "nested": map[string]any{"k": "v"}}
	_, err = h.EncodeAndSign(msg, time.Hour)
	require.NoError(t, err)
	_, hasExp := msg["exp"]
	require.False(t, hasExp)
}

func TestPublicJWKSet(t *testing.T) {
	privPEM, _, _ := genRSAKey(t)
	h, err := NewPlatformKeyHandler(privPEM, "kid-1")
	require.NoError(t, err)

	set := h.PublicJWKSet()
	require.Len(t, set.Keys, 1)
	jwk := set.Keys[0]
	require.Equal(t, "RSA", jwk["kty"])
	require.Equal(t, "kid-1", jwk["kid"])
	require.Equal(t, "RS256", jwk["alg"])
	require.Equal(t, "sig", jwk["use"])
	require.NotEmpty(t, jwk["n"])
	require.NotEmpty(t, jwk["e"])

	// The exported JWK must reconstruct to the same public key.
	keys := rsaKeysFromJWKS(set, "kid-1")
	require.Len(t, keys, 1)
	require.Equal(t, h.PublicKey().N, keys[0].N)
	require.Equal(t, h.PublicKey().E, keys[0].E)
}

func TestRSAKeysFromJWKSKidFiltering(t *testing.T) {
	privPEM, _, _ := genRSAKey(t)
	h, err := NewPlatformKeyHandler(privPEM, "kid-1")
	require.NoError(t, err)
	set := h.PublicJWKSet()

	require.Len(t, rsaKeysFromJWKS(set, "kid-1"), 1)
	require.Empty(t, rsaKeysFromJWKS(set, "kid-other"))
	// No kid requested: everything matches.
	require.Len(t, rsaKeysFromJWKS(set, ""), 1)

	// Entries without a kid are kept even when one is requested.
	delete(set.Keys[0], "kid")
	require.Len(t, rsaKeysFromJWKS(set, "kid-1"), 1)
}
