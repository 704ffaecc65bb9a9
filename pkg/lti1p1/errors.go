package lti1p1

import "errors"

var (
	// ErrSigning means the launch request could not be signed (bad URL, etc).
	ErrSigning = errors.New("lti1p1: failed to sign oauth request")

	// ErrSignatureVerification means the OAuth1 body hash or HMAC signature
	// on an inbound request did not verify.
	ErrSignatureVerification = errors.New("lti1p1: oauth signature verification failed")

	// ErrMissingRequiredData means user or context data was not set before
	// generating a launch request.
	ErrMissingRequiredData = errors.New("lti1p1: required launch data not set")

	// ErrScoreOutOfRange means a result score was present but outside [0.0, 1.0].
	ErrScoreOutOfRange = errors.New("lti1p1: score outside the permitted range of 0.0-1.0")

	// ErrMalformedRequest means an inbound Result/Outcomes payload could not
	// be parsed or is missing required elements.
	ErrMalformedRequest = errors.New("lti1p1: malformed request body")

	// ErrInvalidContentType means the Result service content type was wrong.
	ErrInvalidContentType = errors.New("lti1p1: invalid content type for result service")
)
