// Package httpapi mounts the platform's LTI endpoints: the OIDC launch
// pair, the keyset, the OAuth2 token endpoint, the LTI 1.1 Outcomes and
// Result services, and the deep linking return URL.
package httpapi

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openlms/lticore/internal/registry"
	"github.com/openlms/lticore/pkg/lti1p3"
	"github.com/openlms/lticore/pkg/lti1p3/deeplinking"
)

// ToolRegistry resolves tool registrations for inbound requests.
type ToolRegistry interface {
	Get(ctx context.Context, id string) (registry.Tool, error)
	GetByClientID(ctx context.Context, clientID string) (registry.Tool, error)
}

// ScoreStore persists the grades pushed back by tools over the LTI 1.1
// Result and Outcomes services.
type ScoreStore interface {
	GetScore(ctx context.Context, toolID, userID string) (score *float64, comment string, err error)
	SetScore(ctx context.Context, toolID, userID string, score *float64, comment string) error
	DeleteScore(ctx context.Context, toolID, userID string) error
}

// ContentItemStore receives the content items a tool returns from a
// deep linking flow.
type ContentItemStore interface {
	SaveContentItems(ctx context.Context, toolID string, items []deeplinking.ContentItem) error
}

// Server holds the collaborators every handler needs.
type Server struct {
	Registry ToolRegistry
	Cache    lti1p3.LaunchDataStore
	Scores   ScoreStore
	Content  ContentItemStore

	// Issuer + signing identity shared by every Tool pairing.
	Issuer        string
	PublicURL     string
	PrivateKeyPEM string
	KeyID         string
}

// Routes mounts every LTI endpoint on a fresh router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/.well-known/jwks.json", s.handleKeyset)
	r.Post("/oauth/token", s.handleAccessToken)

	r.Get("/lti/login/{toolID}", s.handleLoginInitiation)
	r.Get("/lti/launch/{toolID}", s.handleLaunchCallback)
	r.Post("/lti/launch/{toolID}", s.handleLaunchCallback)
	r.Post("/lti/deep-linking/response/{toolID}", s.handleDeepLinkingResponse)

	r.Post("/lti11/outcomes/{toolID}", s.handleOutcomes)
	r.Route("/lti2/result/{toolID}/user/{userID}", func(r chi.Router) {
		r.Get("/", s.handleResultGet)
		r.Put("/", s.handleResultPut)
		r.Delete("/", s.handleResultDelete)
	})

	return r
}

// consumerFor builds the 1.3 consumer bound to one registration.
func (s *Server) consumerFor(t registry.Tool) (*lti1p3.Consumer, error) {
	c, err := lti1p3.NewConsumer(lti1p3.Config{
		Issuer:           s.Issuer,
		OIDCURL:          t.OIDCURL,
		LaunchURL:        t.LaunchURL,
		ClientID:         t.ClientID,
		DeploymentID:     t.DeploymentID,
		PrivateKeyPEM:    s.PrivateKeyPEM,
		KeyID:            s.KeyID,
		ToolPublicKeyPEM: t.PublicKeyPEM,
		ToolKeysetURL:    t.KeysetURL,
	})
	if err != nil {
		return nil, err
	}
	c.Store = s.Cache
	return c, nil
}

// ---------- response helpers ----------

type apiError struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type oauthErr struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func writeOAuthError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(oauthErr{Error: code, Description: desc})
}

// autoPostTmpl is the self-submitting form that carries the signed
// id_token back to the Tool's redirect_uri.
var autoPostTmpl = template.Must(template.New("autopost").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Launching…</title></head>
<body onload="document.forms[0].submit()">
<form action="{{.Action}}" method="POST">
{{- range $k, $v := .Fields }}
<input type="hidden" name="{{$k}}" value="{{$v}}">
{{- end }}
<noscript><button type="submit">Continue</button></noscript>
</form>
</body></html>`))

func writeFormPost(w http.ResponseWriter, action string, fields map[string]string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = autoPostTmpl.Execute(w, struct {
		Action string
		Fields map[string]string
	}{Action: action, Fields: fields})
}
