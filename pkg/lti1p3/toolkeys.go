package lti1p3

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
)

/*
Tool-side key resolution.

Verifies Tool-signed JWTs (client assertions, deep linking responses,
proctoring start tokens) against the Tool's registered key material: a
pinned PEM public key, a remote JWKS endpoint, or both. Remote keysets
are cached briefly; when every cached key fails to verify a token, the
cache is dropped and fetched once more before giving up, so a Tool key
rotation does not strand verification for the cache lifetime.
*/

const (
	toolKeysetFetchTimeout = 5 * time.Second
	toolKeysetCacheTTL     = 60 * time.Second
)

// ToolKeyHandler verifies JWTs issued by one registered Tool.
type ToolKeyHandler struct {
	publicKey *rsa.PublicKey
	keysetURL string

	client *http.Client

	mu          sync.Mutex
	cachedSet   *JWKS
	cacheExpiry time.Time

	// Now overrides the clock (tests).
	Now func() time.Time
}

// NewToolKeyHandler builds a verifier from the Tool's registered key
// material. Either source may be empty; with both empty every
// verification fails with ErrNoSuitableKeys.
func NewToolKeyHandler(publicPEM, keysetURL string) (*ToolKeyHandler, error) {
	h := &ToolKeyHandler{
		keysetURL: keysetURL,
		client:    &http.Client{Timeout: toolKeysetFetchTimeout},
	}
	if publicPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicPEM))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRsaKey, err)
		}
		h.publicKey = key
	}
	return h, nil
}

// ValidateAndDecode verifies token against the Tool's keys and returns
// its claims. Expired signatures map to ErrTokenSignatureExpired and
// structurally broken tokens to ErrMalformedJwtToken; any other failure
// against every candidate key is ErrInvalidToken.
func (h *ToolKeyHandler) ValidateAndDecode(ctx context.Context, token string) (map[string]any, error) {
	kid := tokenKeyID(token)

	keys, fromCache, err := h.candidateKeys(ctx, kid)
	if err != nil {
		return nil, err
	}

	var verifyErr error
	if len(keys) > 0 {
		claims, err := h.tryKeys(token, keys)
		if err == nil {
			return claims, nil
		}
		if errors.Is(err, ErrTokenSignatureExpired) || errors.Is(err, ErrMalformedJwtToken) {
			return nil, err
		}
		verifyErr = err
	}

	// The Tool may have rotated keys since the keyset was cached. Drop the
	// cache and retry once against a fresh fetch.
	if fromCache {
		h.invalidateCache()
		keys, _, ferr := h.candidateKeys(ctx, kid)
		if ferr == nil && len(keys) > 0 {
			claims, rerr := h.tryKeys(token, keys)
			if rerr == nil {
				return claims, nil
			}
			if errors.Is(rerr, ErrTokenSignatureExpired) || errors.Is(rerr, ErrMalformedJwtToken) {
				return nil, rerr
			}
			verifyErr = rerr
		}
	}
	if verifyErr == nil {
		return nil, ErrNoSuitableKeys
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidToken, verifyErr)
}

// candidateKeys assembles the verification keys for one token: the RSA
// entries of the (possibly cached) remote keyset filtered by kid, plus
// the pinned key when one is registered.
func (h *ToolKeyHandler) candidateKeys(ctx context.Context, kid string) ([]*rsa.PublicKey, bool, error) {
	var keys []*rsa.PublicKey
	fromCache := false

	if h.keysetURL != "" {
		set, cached, err := h.keyset(ctx)
		if err != nil {
			// A dead keyset endpoint is indistinguishable from an empty
			// one unless a pinned key can still serve.
			if h.publicKey == nil {
				return nil, false, fmt.Errorf("%w: %v", ErrNoSuitableKeys, err)
			}
		} else {
			keys = rsaKeysFromJWKS(*set, kid)
			fromCache = cached
		}
	}
	if h.publicKey != nil {
		keys = append(keys, h.publicKey)
	}
	return keys, fromCache, nil
}

func (h *ToolKeyHandler) tryKeys(token string, keys []*rsa.PublicKey) (map[string]any, error) {
	var lastErr error
	for _, key := range keys {
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{"RS256", "RS512"}))
		if err == nil {
			return claims, nil
		}
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenSignatureExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedJwtToken
		}
		lastErr = err
	}
	return nil, lastErr
}

// keyset returns the remote JWKS, serving from cache within the TTL. The
// bool reports whether the set came from cache. Transient fetch errors
// are retried with capped exponential backoff before failing.
func (h *ToolKeyHandler) keyset(ctx context.Context) (*JWKS, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if h.cachedSet != nil && now.Before(h.cacheExpiry) {
		return h.cachedSet, true, nil
	}

	var set *JWKS
	op := func() error {
		s, err := h.fetchKeyset(ctx)
		if err != nil {
			return err
		}
		set = s
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, false, err
	}

	h.cachedSet = set
	h.cacheExpiry = now.Add(toolKeysetCacheTTL)
	return set, false, nil
}

func (h *ToolKeyHandler) fetchKeyset(ctx context.Context) (*JWKS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.keysetURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("keyset fetch: unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	var set JWKS
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("keyset fetch: %w", err))
	}
	return &set, nil
}

func (h *ToolKeyHandler) invalidateCache() {
	h.mu.Lock()
	h.cachedSet = nil
	h.cacheExpiry = time.Time{}
	h.mu.Unlock()
}

func (h *ToolKeyHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

// UnverifiedSubject peeks at a JWT's sub claim without verifying the
// signature. Useful for registry lookup before verification; never
// trust the value on its own.
func UnverifiedSubject(token string) string {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// tokenKeyID extracts the kid header of a compact JWT without verifying
// it. Returns "" when the header is unreadable or carries no kid.
func tokenKeyID(token string) string {
	parser := jwt.NewParser()
	tok, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil || tok == nil {
		return ""
	}
	kid, _ := tok.Header["kid"].(string)
	return kid
}
