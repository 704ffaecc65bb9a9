package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/openlms/lticore/pkg/lti1p3"
)

/*
OIDC launch pair.

GET /lti/login/{toolID} stages the launch and 302s the browser to the
Tool's third-party login initiation endpoint. The Tool authenticates the
user and sends its authentication request to /lti/launch/{toolID}, where
the platform validates it, restores the staged launch, and hands the
browser a self-submitting form carrying the signed id_token.
*/

// launchRequest is the JSON body an LMS front end posts to stage a
// launch for the current user.
type launchRequest struct {
	UserID         string `json:"user_id"`
	UserRole       string `json:"user_role"`
	ExternalUserID string `json:"external_user_id,omitempty"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`

	MessageType string `json:"message_type,omitempty"`

	ContextID    string `json:"context_id,omitempty"`
	ContextTitle string `json:"context_title,omitempty"`
	ContextLabel string `json:"context_label,omitempty"`

	ResourceLinkID    string `json:"resource_link_id"`
	ResourceLinkTitle string `json:"resource_link_title,omitempty"`

	CustomParameters map[string]string `json:"custom_parameters,omitempty"`
}

func (s *Server) handleLoginInitiation(w http.ResponseWriter, r *http.Request) {
	tool, err := s.Registry.Get(r.Context(), chi.URLParam(r, "toolID"))
	if err != nil {
		writeErr(w, http.StatusNotFound, "unknown tool")
		return
	}
	consumer, err := s.consumerFor(tool)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "tool misconfigured")
		return
	}

	ld, err := launchDataFromRequest(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	preflightURL, err := consumer.PreparePreflightURL(r.Context(), ld)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "unable to stage launch")
		return
	}
	http.Redirect(w, r, preflightURL, http.StatusFound)
}

// launchDataFromRequest accepts either query parameters (browser GET) or
// a JSON body (front-end POST relayed through a redirect endpoint).
func launchDataFromRequest(r *http.Request) (lti1p3.LaunchData, error) {
	var req launchRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return lti1p3.LaunchData{}, errors.New("bad launch body")
		}
	} else {
		q := r.URL.Query()
		req = launchRequest{
			UserID:            q.Get("user_id"),
			UserRole:          q.Get("user_role"),
			ExternalUserID:    q.Get("external_user_id"),
			Name:              q.Get("name"),
			Email:             q.Get("email"),
			MessageType:       q.Get("message_type"),
			ContextID:         q.Get("context_id"),
			ContextTitle:      q.Get("context_title"),
			ContextLabel:      q.Get("context_label"),
			ResourceLinkID:    q.Get("resource_link_id"),
			ResourceLinkTitle: q.Get("resource_link_title"),
		}
	}
	if req.UserID == "" || req.ResourceLinkID == "" {
		return lti1p3.LaunchData{}, errors.New("user_id and resource_link_id are required")
	}
	return lti1p3.LaunchData{
		UserID:            req.UserID,
		UserRole:          req.UserRole,
		ExternalUserID:    req.ExternalUserID,
		Name:              req.Name,
		Email:             req.Email,
		MessageType:       req.MessageType,
		ContextID:         req.ContextID,
		ContextTitle:      req.ContextTitle,
		ContextLabel:      req.ContextLabel,
		ResourceLinkID:    req.ResourceLinkID,
		ResourceLinkTitle: req.ResourceLinkTitle,
		CustomParameters:  req.CustomParameters,
	}, nil
}

func (s *Server) handleLaunchCallback(w http.ResponseWriter, r *http.Request) {
	tool, err := s.Registry.Get(r.Context(), chi.URLParam(r, "toolID"))
	if err != nil {
		writeErr(w, http.StatusNotFound, "unknown tool")
		return
	}
	consumer, err := s.consumerFor(tool)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "tool misconfigured")
		return
	}

	// Tools send the authentication request by GET or form POST.
	if err := r.ParseForm(); err != nil {
		writeErr(w, http.StatusBadRequest, "bad form")
		return
	}
	field := func(k string) string {
		if v := r.PostFormValue(k); v != "" {
			return v
		}
		return r.URL.Query().Get(k)
	}

	pr := lti1p3.PreflightResponse{
		Nonce:          field("nonce"),
		State:          field("state"),
		RedirectURI:    field("redirect_uri"),
		ClientID:       field("client_id"),
		LtiMessageHint: field("lti_message_hint"),
	}

	ld, err := consumer.RestoreLaunch(r.Context(), pr.LtiMessageHint)
	if err != nil {
		if errors.Is(err, lti1p3.ErrLaunchDataNotFound) {
			writeErr(w, http.StatusBadRequest, "launch session expired, please retry the launch")
			return
		}
		writeErr(w, http.StatusInternalServerError, "launch lookup failed")
		return
	}

	adv := lti1p3.NewAdvantageConsumer(consumer)
	s.enableServices(adv, tool.ID)

	resp, err := adv.GenerateLaunchRequestFor(ld, pr)
	if err != nil {
		if errors.Is(err, lti1p3.ErrPreflightValidation) {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		writeErr(w, http.StatusInternalServerError, "launch signing failed")
		return
	}

	action := pr.RedirectURI
	writeFormPost(w, action, map[string]string{
		"state":    resp.State,
		"id_token": resp.IDToken,
	})
}

// enableServices advertises the Advantage services this platform hosts
// for the given tool.
func (s *Server) enableServices(adv *lti1p3.AdvantageConsumer, toolID string) {
	base := strings.TrimSuffix(s.PublicURL, "/")
	adv.EnableAGS(base+"/lti2/result/"+toolID, "", true)
	adv.EnableNRPS(base + "/lti/nrps/" + toolID + "/memberships")
	adv.EnableDeepLinking(adv.Config().LaunchURL, base+"/lti/deep-linking/response/"+toolID)
}

func (s *Server) handleDeepLinkingResponse(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolID")
	tool, err := s.Registry.Get(r.Context(), toolID)
	if err != nil {
		writeErr(w, http.StatusNotFound, "unknown tool")
		return
	}
	consumer, err := s.consumerFor(tool)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "tool misconfigured")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeErr(w, http.StatusBadRequest, "bad form")
		return
	}
	jwtParam := r.PostFormValue("JWT")
	if jwtParam == "" {
		writeErr(w, http.StatusBadRequest, "missing JWT")
		return
	}

	adv := lti1p3.NewAdvantageConsumer(consumer)
	items, err := adv.CheckAndDecodeDeepLinkingToken(r.Context(), jwtParam)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.Content != nil {
		if err := s.Content.SaveContentItems(r.Context(), toolID, items); err != nil {
			writeErr(w, http.StatusInternalServerError, "unable to store content items")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": len(items)})
}
