package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/openlms/lticore/internal/registry"
	"github.com/openlms/lticore/pkg/lti1p3"
)

/*
OAuth 2.0 token endpoint.

Tools obtain Bearer access tokens for the LTI Advantage services here.
The primary authentication method is private_key_jwt (a client_assertion
verified against the Tool's registered keys); client_secret_post against
a stored bcrypt hash is kept as a fallback for tools that cannot sign
assertions. Error responses use RFC 6749 fields.
*/

const (
	errInvalidRequest       = "invalid_request"
	errInvalidClient        = "invalid_client"
	errInvalidGrant         = "invalid_grant"
	errUnsupportedGrantType = "unsupported_grant_type"
)

func (s *Server) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	if ct := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type"))); !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "content-type must be application/x-www-form-urlencoded")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "bad form")
		return
	}

	clientID := clientIDFromForm(r)
	if clientID == "" {
		writeOAuthError(w, http.StatusUnauthorized, errInvalidClient, "client_id required")
		return
	}
	tool, err := s.Registry.GetByClientID(r.Context(), clientID)
	if err != nil {
		writeOAuthError(w, http.StatusUnauthorized, errInvalidClient, "unknown client")
		return
	}
	consumer, err := s.consumerFor(tool)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, errInvalidRequest, "server not configured")
		return
	}

	// client_secret_post fallback: authenticate by secret, then run the
	// scope negotiation without an assertion.
	if secret := r.PostFormValue("client_secret"); secret != "" && r.PostFormValue("client_assertion") == "" {
		if tool.SecretHash == "" || bcrypt.CompareHashAndPassword([]byte(tool.SecretHash), []byte(secret)) != nil {
			writeOAuthError(w, http.StatusUnauthorized, errInvalidClient, "invalid client_secret")
			return
		}
		resp, err := consumer.AccessTokenAuthenticated(r.PostForm)
		if err != nil {
			status, code := mapTokenError(err)
			writeOAuthError(w, status, code, err.Error())
			return
		}
		writeTokenResponse(w, resp)
		return
	}

	resp, err := consumer.AccessToken(r.Context(), r.PostForm)
	if err != nil {
		status, code := mapTokenError(err)
		writeOAuthError(w, status, code, err.Error())
		return
	}
	writeTokenResponse(w, resp)
}

func writeTokenResponse(w http.ResponseWriter, resp *lti1p3.AccessTokenResponse) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}

// clientIDFromForm prefers the explicit form field and falls back to the
// assertion's unverified sub claim so lookup can precede verification.
func clientIDFromForm(r *http.Request) string {
	if id := strings.TrimSpace(r.PostFormValue("client_id")); id != "" {
		return id
	}
	return lti1p3.UnverifiedSubject(r.PostFormValue("client_assertion"))
}

// mapTokenError translates the consumer's error taxonomy onto RFC 6749
// error codes.
func mapTokenError(err error) (int, string) {
	switch {
	case errors.Is(err, lti1p3.ErrMissingRequiredClaim):
		return http.StatusBadRequest, errInvalidRequest
	case errors.Is(err, lti1p3.ErrUnsupportedGrantType):
		return http.StatusBadRequest, errUnsupportedGrantType
	case errors.Is(err, lti1p3.ErrMalformedJwtToken),
		errors.Is(err, lti1p3.ErrTokenSignatureExpired),
		errors.Is(err, lti1p3.ErrInvalidToken):
		return http.StatusBadRequest, errInvalidGrant
	case errors.Is(err, lti1p3.ErrNoSuitableKeys),
		errors.Is(err, lti1p3.ErrUnknownClientID),
		errors.Is(err, registry.ErrToolNotFound):
		return http.StatusUnauthorized, errInvalidClient
	default:
		return http.StatusBadRequest, errInvalidRequest
	}
}

// handleKeyset serves the platform JWKS the Tool verifies id_tokens
// against. Served as an attachment named keyset.json for parity with
// common LMS exports.
func (s *Server) handleKeyset(w http.ResponseWriter, r *http.Request) {
	keys, err := lti1p3.NewPlatformKeyHandler(s.PrivateKeyPEM, s.KeyID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "keyset unavailable")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename=keyset.json`)
	writeJSON(w, http.StatusOK, keys.PublicJWKSet())
}
