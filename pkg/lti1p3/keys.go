package lti1p3

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

/*
Platform-side RSA key handler.

Owns the single signing identity (kid + RSA private key) for one
Platform-Tool pairing, signs launch id_tokens and access tokens as RS256
JWTs, and exports the public half as a JWK Set for the keyset endpoint.
*/

// PlatformKeyHandler signs outgoing platform JWTs with one RSA key.
type PlatformKeyHandler struct {
	key *rsa.PrivateKey
	kid string

	// Now overrides the clock (tests).
	Now func() time.Time
}

// NewPlatformKeyHandler imports a PEM-encoded RSA private key. An empty
// PEM yields a handler with no key: PublicJWKSet serves an empty keyset
// and EncodeAndSign fails with ErrKeyNotSet.
func NewPlatformKeyHandler(privatePEM, kid string) (*PlatformKeyHandler, error) {
	h := &PlatformKeyHandler{kid: kid}
	if privatePEM == "" {
		return h, nil
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privatePEM))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRsaKey, err)
	}
	h.key = key
	return h, nil
}

// EncodeAndSign deep-copies the message, injects iat/exp when an
// expiration is requested, and signs it as an RS256 JWT carrying the
// handler's kid in the header.
func (h *PlatformKeyHandler) EncodeAndSign(message map[string]any, expiresIn time.Duration) (string, error) {
	if h.key == nil {
		return "", ErrKeyNotSet
	}

	claims, err := deepCopyClaims(message)
	if err != nil {
		return "", err
	}
	if expiresIn > 0 {
		now := h.now()
		claims["iat"] = now.Unix()
		claims["exp"] = now.Add(expiresIn).Unix()
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims(claims))
	if h.kid != "" {
		tok.Header["kid"] = h.kid
	}
	return tok.SignedString(h.key)
}

// PublicJWKSet exports the public half of the signing key as a JWK Set.
// Returns {"keys":[]} when no key is loaded.
func (h *PlatformKeyHandler) PublicJWKSet() JWKS {
	set := JWKS{Keys: []map[string]any{}}
	if h.key != nil {
		if jwk := RSAPublicJWK(&h.key.PublicKey, h.kid, "RS256"); jwk != nil {
			set.Keys = append(set.Keys, jwk)
		}
	}
	return set
}

// PublicKey returns the verification half of the signing key, or nil when
// no key is loaded.
func (h *PlatformKeyHandler) PublicKey() *rsa.PublicKey {
	if h.key == nil {
		return nil
	}
	return &h.key.PublicKey
}

// KeyID returns the signing key id.
func (h *PlatformKeyHandler) KeyID() string { return h.kid }

func (h *PlatformKeyHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

// verifyPlatformToken checks a token this platform signed itself and
// returns its claims.
func verifyPlatformToken(token string, pub *rsa.PublicKey) (map[string]any, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// deepCopyClaims clones a claim map through a JSON round-trip so signing
// never mutates the caller's nested maps.
func deepCopyClaims(m map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("lti1p3: claims not serializable: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lti1p3: claims not serializable: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
