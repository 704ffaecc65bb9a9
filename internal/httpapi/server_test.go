package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlms/lticore/internal/launchcache"
	"github.com/openlms/lticore/internal/registry"
	"github.com/openlms/lticore/pkg/lti1p3/deeplinking"
)

// fakeRegistry is a map-backed ToolRegistry.
type fakeRegistry struct {
	tools map[string]registry.Tool
}

func (f *fakeRegistry) Get(_ context.Context, id string) (registry.Tool, error) {
	t, ok := f.tools[id]
	if !ok {
		return registry.Tool{}, registry.ErrToolNotFound
	}
	return t, nil
}

func (f *fakeRegistry) GetByClientID(_ context.Context, clientID string) (registry.Tool, error) {
	for _, t := range f.tools {
		if t.ClientID == clientID {
			return t, nil
		}
	}
	return registry.Tool{}, registry.ErrToolNotFound
}

// fakeScores records calls in memory.
type fakeScores struct {
	scores   map[string]*float64
	comments map[string]string
}

func newFakeScores() *fakeScores {
	return &fakeScores{scores: map[string]*float64{}, comments: map[string]string{}}
}

func (f *fakeScores) key(toolID, userID string) string { return toolID + "/" + userID }

func (f *fakeScores) GetScore(_ context.Context, toolID, userID string) (*float64, string, error) {
	k := f.key(toolID, userID)
	s, ok := f.scores[k]
	if !ok {
		return nil, "", registry.ErrScoreNotFound
	}
	return s, f.comments[k], nil
}

func (f *fakeScores) SetScore(_ context.Context, toolID, userID string, score *float64, comment string) error {
	k := f.key(toolID, userID)
	f.scores[k] = score
	f.comments[k] = comment
	return nil
}

func (f *fakeScores) DeleteScore(_ context.Context, toolID, userID string) error {
	delete(f.scores, f.key(toolID, userID))
	return nil
}

type fakeContent struct {
	saved []deeplinking.ContentItem
}

func (f *fakeContent) SaveContentItems(_ context.Context, _ string, items []deeplinking.ContentItem) error {
	f.saved = append(f.saved, items...)
	return nil
}

func genKeyPEM(t *testing.T) (privPEM, pubPEM string, priv *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return privPEM, pubPEM, key
}

// testServer wires a Server around in-memory fakes. The returned tool key
// signs Tool-side JWTs (client assertions, deep linking responses).
func testServer(t *testing.T) (*Server, *fakeScores, *fakeContent, *rsa.PrivateKey) {
	t.Helper()
	privPEM, _, _ := genKeyPEM(t)
	_, toolPubPEM, toolPriv := genKeyPEM(t)

	reg := &fakeRegistry{tools: map[string]registry.Tool{
		"t1": {
			ID:           "t1",
			Title:        "Example Tool",
			LaunchURL:    "https://tool.example.com/launch",
			OAuthKey:     "k1",
			OAuthSecret:  "s1",
			ClientID:     "client-1",
			DeploymentID: "deploy-1",
			OIDCURL:      "https://tool.example.com/oidc",
			PublicKeyPEM: toolPubPEM,
		},
	}}
	scores := newFakeScores()
	content := &fakeContent{}
	srv := &Server{
		Registry:      reg,
		Cache:         launchcache.NewMemory(),
		Scores:        scores,
		Content:       content,
		Issuer:        "https://platform.example.com",
		PublicURL:     "https://platform.example.com",
		PrivateKeyPEM: privPEM,
		KeyID:         "platform-kid",
	}
	return srv, scores, content, toolPriv
}
