// Package nrps builds the Names and Role Provisioning Services launch
// claim (LTI Advantage NRPS 2.0).
package nrps

// ScopeContextMembershipReadOnly is the only scope NRPS defines.
const ScopeContextMembershipReadOnly = "https://purl.imsglobal.org/spec/lti-nrps/scope/contextmembership.readonly"

// ClaimNamesRoleService is the NRPS claim URI injected into launch messages.
const ClaimNamesRoleService = "https://purl.imsglobal.org/spec/lti-nrps/claim/namesroleservice"

// Service is a stateless builder for the NRPS membership claim.
type Service struct {
	contextMembershipsURL string
}

func New(contextMembershipsURL string) *Service {
	return &Service{contextMembershipsURL: contextMembershipsURL}
}

// AvailableScopes returns the scopes a Tool may request for this service.
func (s *Service) AvailableScopes() []string {
	return []string{ScopeContextMembershipReadOnly}
}

// LaunchClaim returns the membership service claim to merge into the
// launch message. Only version 2.0 of the service is advertised.
func (s *Service) LaunchClaim() map[string]any {
	return map[string]any{
		ClaimNamesRoleService: map[string]any{
			"context_memberships_url": s.contextMembershipsURL,
			"service_versions":        []string{"2.0"},
		},
	}
}
