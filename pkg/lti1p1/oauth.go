package lti1p1

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

/*
OAuth 1.0a signature engine for LTI 1.1 messages.

Two directions:

  - SignRequest builds an HMAC-SHA1 Authorization header for an outbound
    launch POST (body parameters are form-encoded, so they participate in
    the signature base string per RFC 5849 §3.4.1.3).

  - VerifyBodySignature checks an inbound grade callback. Those bodies are
    JSON/XML rather than form-encoded, so integrity is bound in through the
    oauth_body_hash extension: the SHA1 hash of the raw body is carried as
    an OAuth parameter and covered by the header signature.

Verification tries two candidate URIs: the service URL the platform
configured and the URL the request actually arrived on. Reverse proxies can
rewrite the externally visible URL, so a signature made against either one
is accepted.
*/

// percentEncode escapes per RFC 3986 §2.1 (strict: only unreserved
// characters pass through). url.QueryEscape is close but encodes space as
// "+" and leaves some reserved characters alone, so roll our own.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// baseStringURI normalizes a URL for the signature base string: lowercase
// scheme and host, default ports stripped, query and fragment dropped
// (query parameters are collected separately).
func baseStringURI(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if (scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndexByte(host, ':')]
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

type paramPair struct{ k, v string }

// signatureBase builds the RFC 5849 §3.4.1 signature base string from the
// HTTP method, target URL and the combined protocol/body parameters. Query
// parameters on the URL are merged into the parameter set.
func signatureBase(method, rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: url %q has no scheme", ErrSigning, rawURL)
	}

	var pairs []paramPair
	for k, v := range params {
		if k == "oauth_signature" || k == "realm" {
			continue
		}
		pairs = append(pairs, paramPair{percentEncode(k), percentEncode(v)})
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			pairs = append(pairs, paramPair{percentEncode(k), percentEncode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	var sb strings.Builder
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(p.k)
		sb.WriteByte('=')
		sb.WriteString(p.v)
	}

	return strings.ToUpper(method) + "&" + percentEncode(baseStringURI(u)) + "&" + percentEncode(sb.String()), nil
}

func hmacSHA1(secret, base string) string {
	mac := hmac.New(sha1.New, []byte(percentEncode(secret)+"&"))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignRequest computes an OAuth1 HMAC-SHA1 Authorization header for a POST
// of form-encoded bodyParams to rawURL. The returned header looks like:
//
//	OAuth oauth_nonce="...", oauth_timestamp="...", oauth_version="1.0",
//	oauth_signature_method="HMAC-SHA1", oauth_consumer_key="...",
//	oauth_signature="frVp4JuvT1mVXlxktiAUjQ7%2F1cw%3D"
//
// Values inside the quotes are percent-encoded; ParseAuthorizationHeader
// reverses that.
func SignRequest(key, secret, rawURL string, bodyParams map[string]string) (string, error) {
	oauthParams := map[string]string{
		"oauth_nonce":            strings.ReplaceAll(uuid.NewString(), "-", ""),
		"oauth_timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
		"oauth_version":          "1.0",
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_consumer_key":     key,
	}

	all := make(map[string]string, len(oauthParams)+len(bodyParams))
	for k, v := range bodyParams {
		all[k] = v
	}
	for k, v := range oauthParams {
		all[k] = v
	}

	base, err := signatureBase(http.MethodPost, rawURL, all)
	if err != nil {
		return "", err
	}
	sig := hmacSHA1(secret, base)

	// Emit in a fixed order so downstream header parsing is deterministic.
	order := []string{"oauth_nonce", "oauth_timestamp", "oauth_version", "oauth_signature_method", "oauth_consumer_key"}
	parts := make([]string, 0, len(order)+1)
	for _, k := range order {
		parts = append(parts, k+`="`+percentEncode(oauthParams[k])+`"`)
	}
	parts = append(parts, `oauth_signature="`+percentEncode(sig)+`"`)
	return "OAuth " + strings.Join(parts, ", "), nil
}

// SignBodyRequest builds an Authorization header for a request whose body
// is not form-encoded (JSON or XML): the SHA1 body hash rides along as
// oauth_body_hash and is covered by the signature. This is the client half
// of VerifyBodySignature, used when emulating a Tool's grade callback.
func SignBodyRequest(key, secret, method, serviceURL string, body []byte) (string, error) {
	sum := sha1.Sum(body)
	oauthParams := map[string]string{
		"oauth_nonce":            strings.ReplaceAll(uuid.NewString(), "-", ""),
		"oauth_timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
		"oauth_version":          "1.0",
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_consumer_key":     key,
		"oauth_body_hash":        base64.StdEncoding.EncodeToString(sum[:]),
	}

	base, err := signatureBase(method, serviceURL, oauthParams)
	if err != nil {
		return "", err
	}
	sig := hmacSHA1(secret, base)

	order := []string{"oauth_nonce", "oauth_timestamp", "oauth_version", "oauth_signature_method", "oauth_consumer_key", "oauth_body_hash"}
	parts := make([]string, 0, len(order)+1)
	for _, k := range order {
		parts = append(parts, k+`="`+percentEncode(oauthParams[k])+`"`)
	}
	parts = append(parts, `oauth_signature="`+percentEncode(sig)+`"`)
	return "OAuth " + strings.Join(parts, ", "), nil
}

// ParseAuthorizationHeader splits an OAuth Authorization header back into
// its parameters, percent-decoding the quoted values. This is the single
// place where header-string post-processing happens; launch generation
// reuses it to turn the signed header into individual oauth_* form fields.
func ParseAuthorizationHeader(header string) map[string]string {
	header = strings.TrimSpace(header)
	if rest, ok := strings.CutPrefix(header, "OAuth "); ok {
		header = rest
	}
	out := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		v = strings.Trim(v, `"`)
		if dec, err := url.QueryUnescape(v); err == nil {
			v = dec
		}
		out[k] = v
	}
	return out
}

// VerifyBodySignature checks the oauth_body_hash and HMAC-SHA1 signature of
// an inbound signed request (grade callback). body is the raw request body;
// serviceURL is the URL the signer was configured with. The signature is
// accepted if it verifies against either serviceURL or the request's own
// URL, since a reverse proxy may have rewritten one of them.
func VerifyBodySignature(r *http.Request, body []byte, secret, serviceURL string) error {
	params := ParseAuthorizationHeader(r.Header.Get("Authorization"))

	sum := sha1.Sum(body)
	wantHash := base64.StdEncoding.EncodeToString(sum[:])
	if params["oauth_body_hash"] != wantHash {
		return fmt.Errorf("%w: oauth_body_hash mismatch", ErrSignatureVerification)
	}

	gotSig := params["oauth_signature"]
	if gotSig == "" {
		return fmt.Errorf("%w: missing oauth_signature", ErrSignatureVerification)
	}
	signed := make(map[string]string, len(params))
	for k, v := range params {
		if k == "oauth_signature" {
			continue
		}
		signed[k] = v
	}

	unquoted, err := url.QueryUnescape(serviceURL)
	if err != nil {
		unquoted = serviceURL
	}
	for _, candidate := range []string{unquoted, requestURL(r)} {
		if candidate == "" {
			continue
		}
		base, err := signatureBase(r.Method, candidate, signed)
		if err != nil {
			continue
		}
		want := hmacSHA1(secret, base)
		if subtle.ConstantTimeCompare([]byte(want), []byte(gotSig)) == 1 {
			return nil
		}
	}
	return fmt.Errorf("%w: no candidate uri verified", ErrSignatureVerification)
}

// requestURL reconstructs the externally visible URL of an inbound request,
// honoring X-Forwarded-Proto when behind a proxy.
func requestURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	scheme := "http"
	if xf := r.Header.Get("X-Forwarded-Proto"); xf != "" {
		if i := strings.IndexByte(xf, ','); i >= 0 {
			xf = xf[:i]
		}
		scheme = strings.TrimSpace(xf)
	} else if r.TLS != nil {
		scheme = "https"
	}
	if r.Host == "" {
		return ""
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
