package lti1p3

import "errors"

// Error taxonomy for the LTI 1.3 consumer. Configuration errors mean key
// material is missing or unparseable; validation errors mean the inbound
// request is structurally or semantically invalid; signature errors mean
// cryptographic proof failed. All are fatal for the current request and
// never retried.
var (
	ErrInvalidRsaKey = errors.New("lti1p3: invalid rsa key")
	ErrKeyNotSet     = errors.New("lti1p3: rsa key not set")

	ErrMissingRequiredData  = errors.New("lti1p3: required launch data not set")
	ErrMissingRequiredClaim = errors.New("lti1p3: missing required claim")
	ErrPreflightValidation  = errors.New("lti1p3: preflight response validation failed")
	ErrInvalidClaimValue    = errors.New("lti1p3: invalid claim value")
	ErrInvalidRole          = errors.New("lti1p3: invalid role")

	ErrNoSuitableKeys        = errors.New("lti1p3: no suitable keys to verify token")
	ErrMalformedJwtToken     = errors.New("lti1p3: malformed jwt token")
	ErrTokenSignatureExpired = errors.New("lti1p3: token signature expired")
	ErrInvalidToken          = errors.New("lti1p3: token verification failed")
	ErrUnknownClientID       = errors.New("lti1p3: unknown client id")

	ErrUnsupportedGrantType = errors.New("lti1p3: unsupported grant type")

	// ErrLaunchDataNotFound is returned by LaunchDataStore implementations
	// when an lti_message_hint key was never cached or has expired. This is
	// recoverable by restarting the launch, but fatal for this request.
	ErrLaunchDataNotFound = errors.New("lti1p3: launch data not found")
)
