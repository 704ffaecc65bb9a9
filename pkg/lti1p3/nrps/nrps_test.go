package nrps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLaunchClaim(t *testing.T) {
	s := New("https://p.example.com/memberships")
	require.Equal(t, []string{ScopeContextMembershipReadOnly}, s.AvailableScopes())

	claim := s.LaunchClaim()
	svc, ok := claim[ClaimNamesRoleService].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "https://p.example.com/memberships", svc["context_memberships_url"])
	require.Equal(t, []string{"2.0"}, svc["service_versions"])
}
