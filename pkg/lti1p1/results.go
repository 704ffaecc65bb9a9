package lti1p1

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
)

/*
LTI 2.0 Result service payloads.

GET/PUT/DELETE bodies for the result REST endpoint, plus parsing and header
verification for inbound requests. A PUT whose body has no resultScore is
treated by callers as "clear the grade", the same as DELETE.
*/

const resultContext = "http://purl.imsglobal.org/ctx/lis/v2/Result"

// ParseResultJSON verifies an LTI 2.0 Result JSON body and extracts the
// score and comment. The body may be a JSON object or a one-element array
// whose first element is the object. "@type" must equal "Result" and
// "@context" must be present. A missing resultScore is valid and yields a
// nil score; a present resultScore must be a number in [0.0, 1.0].
func ParseResultJSON(body []byte) (*float64, string, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", fmt.Errorf("%w: body is not valid JSON: %v", ErrMalformedRequest, err)
	}

	if list, ok := raw.([]any); ok {
		if len(list) == 0 {
			return nil, "", fmt.Errorf("%w: empty JSON array", ErrMalformedRequest)
		}
		raw = list[0]
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("%w: body is not a JSON object", ErrMalformedRequest)
	}

	if t, _ := obj["@type"].(string); t != "Result" {
		return nil, "", fmt.Errorf("%w: @type must be \"Result\", got %v", ErrMalformedRequest, obj["@type"])
	}
	if _, ok := obj["@context"]; !ok {
		return nil, "", fmt.Errorf("%w: missing required key @context", ErrMalformedRequest)
	}

	comment, _ := obj["comment"].(string)

	rawScore, present := obj["resultScore"]
	if !present {
		return nil, comment, nil
	}
	var score float64
	switch v := rawScore.(type) {
	case float64:
		score = v
	case string:
		if _, err := fmt.Sscanf(v, "%f", &score); err != nil {
			return nil, "", fmt.Errorf("%w: resultScore %q is not a number", ErrScoreOutOfRange, v)
		}
	default:
		return nil, "", fmt.Errorf("%w: resultScore is not a number", ErrScoreOutOfRange)
	}
	if score < 0.0 || score > 1.0 {
		return nil, "", ErrScoreOutOfRange
	}
	return &score, comment, nil
}

// GetResult builds the response body for GET requests to the result
// endpoint. The score, when present, is rounded to two decimals.
func GetResult(score *float64, comment string) map[string]any {
	resp := map[string]any{
		"@context": resultContext,
		"@type":    "Result",
	}
	if score != nil {
		resp["resultScore"] = math.Round(*score*100) / 100
		resp["comment"] = comment
	}
	return resp
}

// PutResult builds the (empty) response body for PUT requests.
func PutResult() map[string]any { return map[string]any{} }

// DeleteResult builds the (empty) response body for DELETE requests.
func DeleteResult() map[string]any { return map[string]any{} }

// VerifyResultHeaders validates an inbound result-service request: the
// content type (when verifyContentType is set) and the OAuth1 body
// signature against the configured outcome service URL.
func (c *Consumer) VerifyResultHeaders(r *http.Request, body []byte, verifyContentType bool) error {
	if verifyContentType && r.Header.Get("Content-Type") != ContentTypeResultJSON {
		return fmt.Errorf("%w: want %s, got %s", ErrInvalidContentType, ContentTypeResultJSON, r.Header.Get("Content-Type"))
	}
	if c.outcomeServiceURL == "" {
		return fmt.Errorf("%w: outcome service url", ErrMissingRequiredData)
	}
	return VerifyBodySignature(r, body, c.secret, c.outcomeServiceURL)
}
