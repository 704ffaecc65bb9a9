// Package ags builds the Assignment and Grades Services launch claim
// (LTI Advantage AGS 2.0).
package ags

// OAuth2 scopes defined by the AGS specification.
const (
	ScopeLineItem         = "https://purl.imsglobal.org/spec/lti-ags/scope/lineitem"
	ScopeLineItemReadOnly = "https://purl.imsglobal.org/spec/lti-ags/scope/lineitem.readonly"
	ScopeResultReadOnly   = "https://purl.imsglobal.org/spec/lti-ags/scope/result.readonly"
	ScopeScore            = "https://purl.imsglobal.org/spec/lti-ags/scope/score"
)

// ClaimEndpoint is the AGS claim URI injected into launch messages.
const ClaimEndpoint = "https://purl.imsglobal.org/spec/lti-ags/claim/endpoint"

// Service is a stateless builder for the AGS endpoint claim. The three
// booleans independently gate which scopes the Tool is offered.
type Service struct {
	lineItemsURL string
	lineItemURL  string

	allowCreatingLineItems bool
	resultsServiceEnabled  bool
	scoresServiceEnabled   bool
}

// New returns an AGS claim builder. lineItemURL is optional: set it when
// the launch is bound to one pre-declared line item.
func New(lineItemsURL, lineItemURL string, allowCreatingLineItems, resultsServiceEnabled, scoresServiceEnabled bool) *Service {
	return &Service{
		lineItemsURL:           lineItemsURL,
		lineItemURL:            lineItemURL,
		allowCreatingLineItems: allowCreatingLineItems,
		resultsServiceEnabled:  resultsServiceEnabled,
		scoresServiceEnabled:   scoresServiceEnabled,
	}
}

// AvailableScopes derives the OAuth2 scope list from the service flags.
// When line item creation is disallowed the Tool gets read-only access.
func (s *Service) AvailableScopes() []string {
	var scopes []string
	if s.allowCreatingLineItems {
		scopes = append(scopes, ScopeLineItem)
	} else {
		scopes = append(scopes, ScopeLineItemReadOnly)
	}
	if s.resultsServiceEnabled {
		scopes = append(scopes, ScopeResultReadOnly)
	}
	if s.scoresServiceEnabled {
		scopes = append(scopes, ScopeScore)
	}
	return scopes
}

// LaunchClaim returns the endpoint claim to merge into the launch message.
func (s *Service) LaunchClaim() map[string]any {
	endpoint := map[string]any{
		"scope":     s.AvailableScopes(),
		"lineitems": s.lineItemsURL,
	}
	if s.lineItemURL != "" {
		endpoint["lineitem"] = s.lineItemURL
	}
	return map[string]any{ClaimEndpoint: endpoint}
}
