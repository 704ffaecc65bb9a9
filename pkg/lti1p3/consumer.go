package lti1p3

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

/*
LTI 1.3 platform-side consumer.

Drives the full launch lifecycle for one Platform-Tool pairing: stage
launch data, redirect the browser through the Tool's OIDC login
initiation endpoint, validate the Tool's preflight response, mint the
signed id_token launch message, and run the client_credentials access
token grant for LTI Advantage services.
*/

// LaunchDataTTL bounds how long a staged launch may sit between the
// preflight redirect and the Tool's callback.
const LaunchDataTTL = 10 * time.Minute

// launchTokenTTL is the id_token lifetime.
const launchTokenTTL = time.Duration(AccessTokenTTLSeconds) * time.Second

// LaunchDataStore caches launch data between the OIDC preflight and the
// authentication callback, keyed by the lti_message_hint value. Get on a
// missing or expired key returns ErrLaunchDataNotFound.
type LaunchDataStore interface {
	Put(ctx context.Context, key string, data LaunchData, ttl time.Duration) error
	Get(ctx context.Context, key string) (LaunchData, error)
}

// Config is the static registration of one Platform-Tool pairing.
type Config struct {
	// Issuer identifies this platform in every token it signs.
	Issuer string

	// OIDCURL is the Tool's third-party login initiation endpoint.
	OIDCURL string

	// LaunchURL is the Tool's launch endpoint, sent as target_link_uri.
	LaunchURL string

	ClientID     string
	DeploymentID string

	// PrivateKeyPEM + KeyID form the platform signing identity.
	PrivateKeyPEM string
	KeyID         string

	// Tool verification key material. Either may be empty.
	ToolPublicKeyPEM string
	ToolKeysetURL    string
}

// RoleURIs maps a platform role name onto the LTI role URI vocabulary.
// The empty role is anonymous and yields no URIs; unknown roles are an
// error so misconfigured callers fail loudly instead of launching with
// silently dropped permissions.
func RoleURIs(role string) ([]string, error) {
	if role == "" {
		return []string{}, nil
	}
	uris, ok := roleMap[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return append([]string(nil), uris...), nil
}

// Consumer builds and signs launch messages for one registered Tool.
type Consumer struct {
	cfg Config

	platformKeys *PlatformKeyHandler
	toolKeys     *ToolKeyHandler

	// Store caches launch data across the OIDC round trip. Required for
	// PreparePreflightURL and RestoreLaunch.
	Store LaunchDataStore

	userClaims     map[string]any
	resourceLink   map[string]any
	contextClaim   map[string]any
	presentation   map[string]any
	customClaim    map[string]string
	extraClaims    map[string]any
	hasUserData    bool
	hasResourceSet bool
}

// NewConsumer wires a consumer from its registration. The private key
// may be empty when only verification paths are exercised.
func NewConsumer(cfg Config) (*Consumer, error) {
	pk, err := NewPlatformKeyHandler(cfg.PrivateKeyPEM, cfg.KeyID)
	if err != nil {
		return nil, err
	}
	tk, err := NewToolKeyHandler(cfg.ToolPublicKeyPEM, cfg.ToolKeysetURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		cfg:          cfg,
		platformKeys: pk,
		toolKeys:     tk,
	}, nil
}

// Config returns the registration this consumer was built from.
func (c *Consumer) Config() Config { return c.cfg }

// PlatformKeys exposes the signing handler, mainly for clock injection
// in tests and for the keyset endpoint.
func (c *Consumer) PlatformKeys() *PlatformKeyHandler { return c.platformKeys }

// ToolKeys exposes the Tool verification handler.
func (c *Consumer) ToolKeys() *ToolKeyHandler { return c.toolKeys }

// ---------- launch message assembly ----------

// UserDataOptions carries the optional PII claims of a launch subject.
type UserDataOptions struct {
	Name              string
	Email             string
	PreferredUsername string
}

// SetUserData binds the launch subject. role must be a known platform
// role or empty for an anonymous launch.
func (c *Consumer) SetUserData(userID, role string, opts UserDataOptions) error {
	if userID == "" {
		return fmt.Errorf("%w: user id", ErrMissingRequiredData)
	}
	uris, err := RoleURIs(role)
	if err != nil {
		return err
	}
	claims := map[string]any{
		"sub":      userID,
		ClaimRoles: uris,
	}
	if opts.Name != "" {
		claims["name"] = opts.Name
	}
	if opts.Email != "" {
		claims["email"] = opts.Email
	}
	if opts.PreferredUsername != "" {
		claims["preferred_username"] = opts.PreferredUsername
	}
	c.userClaims = claims
	c.hasUserData = true
	return nil
}

// SetResourceLinkClaim binds the resource link the launch targets.
func (c *Consumer) SetResourceLinkClaim(id, title string) error {
	if id == "" {
		return fmt.Errorf("%w: resource link id", ErrMissingRequiredData)
	}
	link := map[string]any{"id": id}
	if title != "" {
		link["title"] = title
	}
	c.resourceLink = link
	c.hasResourceSet = true
	return nil
}

// SetLaunchPresentationClaim declares how the Tool is displayed.
// documentTarget must be "iframe", "frame" or "window".
func (c *Consumer) SetLaunchPresentationClaim(documentTarget string) error {
	switch documentTarget {
	case "iframe", "frame", "window":
	default:
		return fmt.Errorf("%w: document_target %q", ErrInvalidClaimValue, documentTarget)
	}
	c.presentation = map[string]any{"document_target": documentTarget}
	return nil
}

// SetContextClaim describes the course context. contextType must be one
// of the ContextType constants when non-empty.
func (c *Consumer) SetContextClaim(id, title, label, contextType string) error {
	if id == "" {
		return fmt.Errorf("%w: context id", ErrMissingRequiredData)
	}
	claim := map[string]any{"id": id}
	if title != "" {
		claim["title"] = title
	}
	if label != "" {
		claim["label"] = label
	}
	if contextType != "" {
		switch contextType {
		case ContextTypeGroup, ContextTypeCourseOffering, ContextTypeCourseSection, ContextTypeCourseTemplate:
		default:
			return fmt.Errorf("%w: context type %q", ErrInvalidClaimValue, contextType)
		}
		claim["type"] = []string{contextType}
	}
	c.contextClaim = claim
	return nil
}

// SetCustomParameters attaches the custom claim wholesale. LTI 1.3 does
// no key prefixing; the map is sent as-is.
func (c *Consumer) SetCustomParameters(params map[string]string) error {
	if params == nil {
		return fmt.Errorf("%w: custom parameters", ErrMissingRequiredData)
	}
	c.customClaim = params
	return nil
}

// SetExtraClaims merges service claims (AGS, NRPS, deep linking) into
// the next launch message. Later keys overwrite earlier ones.
func (c *Consumer) SetExtraClaims(claims map[string]any) {
	if c.extraClaims == nil {
		c.extraClaims = map[string]any{}
	}
	for k, v := range claims {
		c.extraClaims[k] = v
	}
}

// ApplyLaunchData loads a cached snapshot back into the consumer's
// claim builders, restoring the state staged before the OIDC round trip.
func (c *Consumer) ApplyLaunchData(ld LaunchData) error {
	if err := c.SetUserData(ld.UserID, ld.UserRole, UserDataOptions{
		Name:              ld.Name,
		Email:             ld.Email,
		PreferredUsername: ld.PreferredUsername,
	}); err != nil {
		return err
	}
	if err := c.SetResourceLinkClaim(ld.ResourceLinkID, ld.ResourceLinkTitle); err != nil {
		return err
	}
	if ld.ContextID != "" {
		if err := c.SetContextClaim(ld.ContextID, ld.ContextTitle, ld.ContextLabel, ld.ContextType); err != nil {
			return err
		}
	}
	if ld.LaunchPresentationDocumentTarget != "" {
		if err := c.SetLaunchPresentationClaim(ld.LaunchPresentationDocumentTarget); err != nil {
			return err
		}
	}
	if ld.CustomParameters != nil {
		if err := c.SetCustomParameters(ld.CustomParameters); err != nil {
			return err
		}
	}
	return nil
}

// LaunchMessage assembles the unsigned claim set of a resource link
// launch. User data and a resource link must have been set first.
func (c *Consumer) LaunchMessage(includeExtraClaims bool) (map[string]any, error) {
	if !c.hasUserData || !c.hasResourceSet {
		return nil, ErrMissingRequiredData
	}

	msg := map[string]any{
		"iss":              c.cfg.Issuer,
		"aud":              []string{c.cfg.ClientID},
		"azp":              c.cfg.ClientID,
		ClaimMessageType:   MessageTypeResourceLink,
		ClaimVersion:       LTIVersion,
		ClaimDeploymentID:  c.cfg.DeploymentID,
		ClaimTargetLinkURI: c.cfg.LaunchURL,
		ClaimResourceLink:  c.resourceLink,
	}
	for k, v := range c.userClaims {
		msg[k] = v
	}
	if c.contextClaim != nil {
		msg[ClaimContext] = c.contextClaim
	}
	if c.presentation != nil {
		msg[ClaimLaunchPresentation] = c.presentation
	}
	if c.customClaim != nil {
		msg[ClaimCustom] = c.customClaim
	}
	if includeExtraClaims {
		for k, v := range c.extraClaims {
			msg[k] = v
		}
	}
	return msg, nil
}

// ---------- OIDC preflight ----------

// PreparePreflightURL stages the launch data and returns the URL that
// starts the Tool's third-party login flow. The cache key doubles as
// the lti_message_hint the Tool must echo back.
func (c *Consumer) PreparePreflightURL(ctx context.Context, ld LaunchData) (string, error) {
	if c.Store == nil {
		return "", fmt.Errorf("%w: launch data store", ErrMissingRequiredData)
	}
	key := uuid.NewString()
	if err := c.Store.Put(ctx, key, ld, LaunchDataTTL); err != nil {
		return "", err
	}

	loginHint := ld.ExternalUserID
	if loginHint == "" {
		loginHint = ld.UserID
	}

	q := url.Values{}
	q.Set("iss", c.cfg.Issuer)
	q.Set("client_id", c.cfg.ClientID)
	q.Set("lti_deployment_id", c.cfg.DeploymentID)
	q.Set("target_link_uri", c.cfg.LaunchURL)
	q.Set("login_hint", loginHint)
	q.Set("lti_message_hint", key)

	sep := "?"
	if strings.Contains(c.cfg.OIDCURL, "?") {
		sep = "&"
	}
	return c.cfg.OIDCURL + sep + q.Encode(), nil
}

// RestoreLaunch resolves the lti_message_hint echoed on the callback
// back into the staged launch data.
func (c *Consumer) RestoreLaunch(ctx context.Context, messageHint string) (LaunchData, error) {
	if c.Store == nil {
		return LaunchData{}, fmt.Errorf("%w: launch data store", ErrMissingRequiredData)
	}
	return c.Store.Get(ctx, messageHint)
}

// PreflightResponse carries the Tool's authentication request fields
// that the platform must validate before minting the id_token.
type PreflightResponse struct {
	Nonce          string
	State          string
	RedirectURI    string
	ClientID       string
	LtiMessageHint string
}

// ValidatePreflightResponse checks the Tool's authentication request.
// Every field is required; client_id must match the registration and
// redirect_uri must be the registered launch URL.
func (c *Consumer) ValidatePreflightResponse(pr PreflightResponse) error {
	switch {
	case pr.Nonce == "":
		return fmt.Errorf("%w: missing nonce", ErrPreflightValidation)
	case pr.State == "":
		return fmt.Errorf("%w: missing state", ErrPreflightValidation)
	case pr.ClientID != c.cfg.ClientID:
		return fmt.Errorf("%w: client_id mismatch", ErrPreflightValidation)
	case pr.RedirectURI != c.cfg.LaunchURL:
		return fmt.Errorf("%w: redirect_uri mismatch", ErrPreflightValidation)
	}
	return nil
}

// LaunchResponse is the signed launch the browser auto-submits to the
// Tool's redirect_uri.
type LaunchResponse struct {
	State   string
	IDToken string
}

// GenerateLaunchRequest validates the preflight response and signs the
// launch message, binding the Tool's nonce into the id_token.
func (c *Consumer) GenerateLaunchRequest(pr PreflightResponse) (*LaunchResponse, error) {
	if err := c.ValidatePreflightResponse(pr); err != nil {
		return nil, err
	}
	msg, err := c.LaunchMessage(true)
	if err != nil {
		return nil, err
	}
	return c.signLaunch(msg, pr)
}

func (c *Consumer) signLaunch(msg map[string]any, pr PreflightResponse) (*LaunchResponse, error) {
	msg["nonce"] = pr.Nonce
	token, err := c.platformKeys.EncodeAndSign(msg, launchTokenTTL)
	if err != nil {
		return nil, err
	}
	return &LaunchResponse{State: pr.State, IDToken: token}, nil
}

// ---------- access tokens ----------

// AccessTokenResponse is the RFC 6749 token endpoint payload.
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// AccessToken runs the client_credentials grant: checks the request
// shape, verifies the Tool's JWT client assertion, filters the requested
// scopes against the supported set, and signs a platform access token.
// Scopes outside the supported set are dropped, not rejected.
func (c *Consumer) AccessToken(ctx context.Context, form url.Values) (*AccessTokenResponse, error) {
	for _, f := range accessTokenRequiredFields {
		if form.Get(f) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingRequiredClaim, f)
		}
	}
	if form.Get("grant_type") != "client_credentials" {
		return nil, ErrUnsupportedGrantType
	}
	if form.Get("client_assertion_type") != ClientAssertionTypeJWT {
		return nil, fmt.Errorf("%w: client_assertion_type", ErrInvalidClaimValue)
	}

	if _, err := c.toolKeys.ValidateAndDecode(ctx, form.Get("client_assertion")); err != nil {
		return nil, err
	}

	return c.mintAccessToken(form.Get("scope"))
}

// AccessTokenAuthenticated mints an access token for a client the
// caller already authenticated by other means (client_secret_post).
// Only the grant type and scope fields are consulted.
func (c *Consumer) AccessTokenAuthenticated(form url.Values) (*AccessTokenResponse, error) {
	if form.Get("grant_type") == "" || form.Get("scope") == "" {
		return nil, fmt.Errorf("%w: grant_type, scope", ErrMissingRequiredClaim)
	}
	if form.Get("grant_type") != "client_credentials" {
		return nil, ErrUnsupportedGrantType
	}
	return c.mintAccessToken(form.Get("scope"))
}

func (c *Consumer) mintAccessToken(scopeField string) (*AccessTokenResponse, error) {
	granted := filterScopes(strings.Fields(scopeField), supportedTokenScopes)
	scope := strings.Join(granted, " ")

	token, err := c.platformKeys.EncodeAndSign(map[string]any{
		"sub":    c.cfg.ClientID,
		"iss":    c.cfg.Issuer,
		"scopes": scope,
	}, time.Duration(AccessTokenTTLSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return &AccessTokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   AccessTokenTTLSeconds,
		Scope:       scope,
	}, nil
}

// CheckToken verifies a bearer token this platform issued and reports
// whether it grants any of the allowed scopes. An empty allowed list
// only requires a valid token.
func (c *Consumer) CheckToken(token string, allowedScopes ...string) bool {
	pub := c.platformKeys.PublicKey()
	if pub == nil {
		return false
	}
	claims, err := verifyPlatformToken(token, pub)
	if err != nil {
		return false
	}
	if iss, _ := claims["iss"].(string); iss != c.cfg.Issuer {
		return false
	}
	if len(allowedScopes) == 0 {
		return true
	}
	granted, _ := claims["scopes"].(string)
	for _, have := range strings.Fields(granted) {
		for _, want := range allowedScopes {
			if have == want {
				return true
			}
		}
	}
	return false
}

// PublicJWKSet exposes the platform keyset for the Tool to verify
// id_tokens against.
func (c *Consumer) PublicJWKSet() JWKS {
	return c.platformKeys.PublicJWKSet()
}

func filterScopes(requested, supported []string) []string {
	granted := []string{}
	for _, r := range requested {
		for _, s := range supported {
			if r == s {
				granted = append(granted, r)
				break
			}
		}
	}
	return granted
}
