package lti1p3

import (
	"github.com/openlms/lticore/pkg/lti1p3/ags"
	"github.com/openlms/lticore/pkg/lti1p3/nrps"
)

// Registered LTI claim URIs.
const (
	ClaimMessageType        = "https://purl.imsglobal.org/spec/lti/claim/message_type"
	ClaimVersion            = "https://purl.imsglobal.org/spec/lti/claim/version"
	ClaimDeploymentID       = "https://purl.imsglobal.org/spec/lti/claim/deployment_id"
	ClaimTargetLinkURI      = "https://purl.imsglobal.org/spec/lti/claim/target_link_uri"
	ClaimResourceLink       = "https://purl.imsglobal.org/spec/lti/claim/resource_link"
	ClaimContext            = "https://purl.imsglobal.org/spec/lti/claim/context"
	ClaimRoles              = "https://purl.imsglobal.org/spec/lti/claim/roles"
	ClaimCustom             = "https://purl.imsglobal.org/spec/lti/claim/custom"
	ClaimLaunchPresentation = "https://purl.imsglobal.org/spec/lti/claim/launch_presentation"
)

// Proctoring service claim URIs.
const (
	ClaimAttemptNumber      = "https://purl.imsglobal.org/spec/lti-ap/claim/attempt_number"
	ClaimSessionData        = "https://purl.imsglobal.org/spec/lti-ap/claim/session_data"
	ClaimStartAssessmentURL = "https://purl.imsglobal.org/spec/lti-ap/claim/start_assessment_url"
	ClaimACS                = "https://purl.imsglobal.org/spec/lti-ap/claim/acs"
)

// LTI message types.
const (
	MessageTypeResourceLink        = "LtiResourceLinkRequest"
	MessageTypeDeepLinkingRequest  = "LtiDeepLinkingRequest"
	MessageTypeDeepLinkingResponse = "LtiDeepLinkingResponse"
	MessageTypeStartProctoring     = "LtiStartProctoring"
	MessageTypeStartAssessment     = "LtiStartAssessment"
	MessageTypeEndAssessment       = "LtiEndAssessment"
)

// LTIVersion is the protocol version stamped into every launch message.
const LTIVersion = "1.3.0"

// ClientAssertionTypeJWT is the RFC 7523 client assertion type required on
// access token requests.
const ClientAssertionTypeJWT = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// AccessTokenTTLSeconds is the fixed access token lifetime per the IMS
// Security Framework.
const AccessTokenTTLSeconds = 3600

// roleMap converts a platform role into the LTI role URI vocabulary.
// The empty role is valid and yields no role URIs; anything not in the map
// is an error. http://www.imsglobal.org/spec/lti/v1p3/#role-vocabularies
var roleMap = map[string][]string{
	"staff": {
		"http://purl.imsglobal.org/vocab/lis/v2/system/person#Administrator",
		"http://purl.imsglobal.org/vocab/lis/v2/institution/person#Instructor",
	},
	"instructor": {
		"http://purl.imsglobal.org/vocab/lis/v2/institution/person#Instructor",
	},
	"student": {
		"http://purl.imsglobal.org/vocab/lis/v2/institution/person#Student",
	},
	"guest": {
		"http://purl.imsglobal.org/vocab/lis/v2/institution/person#Student",
	},
}

// ContextType values for the context claim.
// https://www.imsglobal.org/spec/lti/v1p3/#context-type-vocabulary
const (
	ContextTypeGroup          = "http://purl.imsglobal.org/vocab/lis/v2/course#CourseGroup"
	ContextTypeCourseOffering = "http://purl.imsglobal.org/vocab/lis/v2/course#CourseOffering"
	ContextTypeCourseSection  = "http://purl.imsglobal.org/vocab/lis/v2/course#CourseSection"
	ContextTypeCourseTemplate = "http://purl.imsglobal.org/vocab/lis/v2/course#CourseTemplate"
)

// accessTokenRequiredFields must all be present on a token request.
var accessTokenRequiredFields = []string{
	"grant_type",
	"client_assertion_type",
	"client_assertion",
	"scope",
}

// supportedTokenScopes is the allow-list of scopes this platform will
// grant. Unknown requested scopes are silently dropped, not rejected.
var supportedTokenScopes = []string{
	ags.ScopeLineItemReadOnly,
	ags.ScopeLineItem,
	ags.ScopeResultReadOnly,
	ags.ScopeScore,
	nrps.ScopeContextMembershipReadOnly,
}
