package lti1p1

import (
	"fmt"
	"net/url"
	"strings"
)

/*
LTI 1.1 launch consumer (Platform side).

The consumer accumulates user/context/outcome data through setters, then
GenerateLaunchRequest merges everything with the fixed protocol parameters,
signs the set with the OAuth1 engine, and folds the resulting Authorization
header back into the flat parameter map that gets POSTed to the Tool through
a browser auto-submit form.

Spec: https://www.imsglobal.org/specs/ltiv1p1
*/

// ContentTypeResultJSON is the media type of the LTI 2.0 Result service.
const ContentTypeResultJSON = "application/vnd.ims.lis.v2.result+json"

// standardParameters are the recognized non-custom LTI launch parameter
// names. Custom parameters whose keys collide with one of these are passed
// through without the custom_ prefix.
var standardParameters = map[string]struct{}{
	"lti_message_type":                       {},
	"lti_version":                            {},
	"resource_link_title":                    {},
	"resource_link_description":              {},
	"user_image":                             {},
	"lis_person_name_given":                  {},
	"lis_person_name_family":                 {},
	"lis_person_name_full":                   {},
	"lis_person_contact_email_primary":       {},
	"lis_person_sourcedid":                   {},
	"role_scope_mentor":                      {},
	"context_type":                           {},
	"context_title":                          {},
	"context_label":                          {},
	"launch_presentation_locale":             {},
	"launch_presentation_document_target":    {},
	"launch_presentation_css_url":            {},
	"launch_presentation_width":              {},
	"launch_presentation_height":             {},
	"launch_presentation_return_url":         {},
	"tool_consumer_info_product_family_code": {},
	"tool_consumer_info_version":             {},
	"tool_consumer_instance_guid":            {},
	"tool_consumer_instance_name":            {},
	"tool_consumer_instance_description":     {},
	"tool_consumer_instance_url":             {},
	"tool_consumer_instance_contact_email":   {},
}

// UserData carries the identity fields for SetUserData. UserID, Roles and
// ResultSourcedID are required; the person fields are optional and only
// included when non-empty.
type UserData struct {
	UserID             string
	Roles              string // comma separated role values, e.g. "Instructor"
	ResultSourcedID    string
	PersonSourcedID    string
	PersonContactEmail string
	PersonFullName     string
}

// Consumer builds signed LTI 1.1 launches for one Platform-Tool pairing.
// It is single-use: construct, call setters, generate one launch.
type Consumer struct {
	launchURL string
	key       string
	secret    string

	productFamilyCode string

	userData           map[string]string
	contextData        map[string]string
	outcomeServiceURL  string
	presentationLocale string
	customParameters   map[string]string
	extraParameters    map[string]string
}

// NewConsumer returns a consumer for the given launch URL and OAuth1
// consumer credentials.
func NewConsumer(launchURL, oauthKey, oauthSecret string) *Consumer {
	return &Consumer{
		launchURL:       launchURL,
		key:             oauthKey,
		secret:          oauthSecret,
		extraParameters: map[string]string{},
	}
}

// SetProductFamilyCode sets the tool_consumer_info_product_family_code
// value advertised in the launch (typically the platform name).
func (c *Consumer) SetProductFamilyCode(name string) {
	c.productFamilyCode = name
}

// SetUserData stores the launching user's identity. Required before
// GenerateLaunchRequest.
func (c *Consumer) SetUserData(d UserData) {
	c.userData = map[string]string{
		"user_id":              d.UserID,
		"roles":                d.Roles,
		"lis_result_sourcedid": d.ResultSourcedID,
	}
	if d.PersonSourcedID != "" {
		c.userData["lis_person_sourcedid"] = d.PersonSourcedID
	}
	if d.PersonContactEmail != "" {
		c.userData["lis_person_contact_email_primary"] = d.PersonContactEmail
	}
	if d.PersonFullName != "" {
		c.userData["lis_person_name_full"] = d.PersonFullName
	}
}

// SetContextData stores the launch context. Required before
// GenerateLaunchRequest.
func (c *Consumer) SetContextData(id, title, label string) {
	c.contextData = map[string]string{
		"context_id":    id,
		"context_title": title,
		"context_label": label,
	}
}

// SetOutcomeServiceURL advertises the grade passback endpoint to the Tool
// and is also the service URL used when verifying inbound result requests.
func (c *Consumer) SetOutcomeServiceURL(u string) {
	c.outcomeServiceURL = u
}

// SetLaunchPresentationLocale sets the BCP-47 locale sent to the Tool.
func (c *Consumer) SetLaunchPresentationLocale(locale string) {
	c.presentationLocale = locale
}

// SetCustomParameters stores custom launch parameters. Keys that are not
// already custom_-prefixed and do not name a standard LTI parameter get the
// custom_ prefix.
func (c *Consumer) SetCustomParameters(params map[string]string) error {
	if params == nil {
		return fmt.Errorf("%w: custom parameters must be a key/value map", ErrMissingRequiredData)
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		if _, std := standardParameters[k]; !std && !strings.HasPrefix(k, "custom_") {
			k = "custom_" + k
		}
		out[k] = v
	}
	c.customParameters = out
	return nil
}

// SetExtraParameters merges best-effort enrichment parameters (parameter
// processor output) into the launch.
func (c *Consumer) SetExtraParameters(params map[string]string) {
	for k, v := range params {
		c.extraParameters[k] = v
	}
}

// GenerateLaunchRequest signs the accumulated launch data and returns the
// flat parameter map to POST to the Tool, including the individual oauth_*
// fields recovered from the Authorization header. User data and context
// data must both be set.
func (c *Consumer) GenerateLaunchRequest(resourceLinkID string) (map[string]string, error) {
	params := map[string]string{
		"oauth_callback":                 "about:blank",
		"launch_presentation_return_url": "",
		"lti_message_type":               "basic-lti-launch-request",
		"lti_version":                    "LTI-1p0",
		"resource_link_id":               resourceLinkID,
	}
	if c.productFamilyCode != "" {
		params["tool_consumer_info_product_family_code"] = c.productFamilyCode
	}

	if c.userData == nil {
		return nil, fmt.Errorf("%w: user data", ErrMissingRequiredData)
	}
	for k, v := range c.userData {
		params[k] = v
	}

	if c.contextData == nil {
		return nil, fmt.Errorf("%w: context data", ErrMissingRequiredData)
	}
	for k, v := range c.contextData {
		params[k] = v
	}

	if c.outcomeServiceURL != "" {
		params["lis_outcome_service_url"] = c.outcomeServiceURL
	}
	if c.presentationLocale != "" {
		params["launch_presentation_locale"] = c.presentationLocale
	}
	for k, v := range c.customParameters {
		params[k] = v
	}
	for k, v := range c.extraParameters {
		params[k] = v
	}

	header, err := SignRequest(c.key, c.secret, c.launchURL, params)
	if err != nil {
		return nil, err
	}

	// Fold the Authorization header back into individual form fields. The
	// signature was percent-encoded by the signer; ParseAuthorizationHeader
	// decodes it so the browser form encodes it exactly once on submit.
	for k, v := range ParseAuthorizationHeader(header) {
		params[k] = v
	}
	return params, nil
}

// LaunchURL returns the Tool launch endpoint this consumer signs for.
func (c *Consumer) LaunchURL() string { return c.launchURL }

// OutcomeServiceURL returns the configured grade passback endpoint.
func (c *Consumer) OutcomeServiceURL() string { return c.outcomeServiceURL }

// FormURLEncode renders launch parameters as an x-www-form-urlencoded body,
// useful for server-to-server testing of the launch POST.
func FormURLEncode(params map[string]string) string {
	v := make(url.Values, len(params))
	for k, val := range params {
		v.Set(k, val)
	}
	return v.Encode()
}
