package ags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAvailableScopes(t *testing.T) {
	s := New("https://p.example.com/lineitems", "", true, true, true)
	scopes := s.AvailableScopes()
	require.Contains(t, scopes, ScopeLineItem)
	require.NotContains(t, scopes, ScopeLineItemReadOnly)
	require.Contains(t, scopes, ScopeResultReadOnly)
	require.Contains(t, scopes, ScopeScore)

	s = New("https://p.example.com/lineitems", "", false, false, false)
	scopes = s.AvailableScopes()
	require.Equal(t, []string{ScopeLineItemReadOnly}, scopes)
}

func TestLaunchClaim(t *testing.T) {
	s := New("https://p.example.com/lineitems", "https://p.example.com/lineitems/7", true, true, false)
	claim := s.LaunchClaim()

	endpoint, ok := claim[ClaimEndpoint].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "https://p.example.com/lineitems", endpoint["lineitems"])
	require.Equal(t, "https://p.example.com/lineitems/7", endpoint["lineitem"])
}

func TestLaunchClaimOmitsEmptyLineItem(t *testing.T) {
	claim := New("https://p.example.com/lineitems", "", true, true, true).LaunchClaim()
	endpoint := claim[ClaimEndpoint].(map[string]any)
	_, has := endpoint["lineitem"]
	require.False(t, has)
}
