// Package deeplinking builds the Deep Linking launch claim and decodes
// Tool-returned content items (LTI Advantage DL 2.0).
package deeplinking

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Claim URIs defined by the Deep Linking specification.
const (
	ClaimSettings     = "https://purl.imsglobal.org/spec/lti-dl/claim/deep_linking_settings"
	ClaimContentItems = "https://purl.imsglobal.org/spec/lti-dl/claim/content_items"
	ClaimData         = "https://purl.imsglobal.org/spec/lti-dl/claim/data"
)

// AcceptedTypes is the full set of content item types this platform can
// embed. A response containing any item outside this set is rejected whole.
var AcceptedTypes = []string{"ltiResourceLink", "link", "html", "image"}

// ErrContentTypeNotSupported means a requested accept type, or a returned
// content item type, is outside AcceptedTypes.
var ErrContentTypeNotSupported = errors.New("deeplinking: content type not supported")

func typeAccepted(t string) bool {
	for _, a := range AcceptedTypes {
		if a == t {
			return true
		}
	}
	return false
}

// Service builds the deep_linking_settings claim for a Deep Linking
// request launch.
type Service struct {
	launchURL string
	returnURL string
}

// New returns a Deep Linking claim builder. launchURL is the Tool's deep
// linking launch endpoint (used as target_link_uri for DL launches);
// returnURL is where the Tool POSTs its signed response.
func New(launchURL, returnURL string) *Service {
	return &Service{launchURL: launchURL, returnURL: returnURL}
}

// LaunchURL returns the Tool's deep linking launch endpoint.
func (s *Service) LaunchURL() string { return s.launchURL }

// LaunchClaim returns the settings claim for a LtiDeepLinkingRequest.
// acceptTypes defaults to every accepted type when empty; any requested
// type outside AcceptedTypes is fatal. accept_multiple and auto_create are
// fixed platform policy, not configurable.
func (s *Service) LaunchClaim(title, description string, acceptTypes []string, extraData string) (map[string]any, error) {
	if len(acceptTypes) == 0 {
		acceptTypes = AcceptedTypes
	}
	claimTypes := make([]string, 0, len(acceptTypes))
	for _, t := range acceptTypes {
		if !typeAccepted(t) {
			return nil, fmt.Errorf("%w: %q", ErrContentTypeNotSupported, t)
		}
		claimTypes = append(claimTypes, t)
	}

	settings := map[string]any{
		"accept_types": claimTypes,
		"accept_presentation_document_targets": []string{
			"iframe", "window", "embed",
		},
		"accept_multiple":      true,
		"auto_create":          true,
		"title":                title,
		"text":                 description,
		"deep_link_return_url": s.returnURL,
	}
	if extraData != "" {
		// Opaque to the tool, echoed back in the response.
		settings["data"] = extraData
	}
	return map[string]any{ClaimSettings: settings}, nil
}

// LineItem is the optional AGS hint attached to a returned content item.
type LineItem struct {
	Label        string  `json:"label,omitempty"`
	ScoreMaximum float64 `json:"scoreMaximum,omitempty"`
	ResourceID   string  `json:"resourceId,omitempty"`
	Tag          string  `json:"tag,omitempty"`
}

// ContentItem is one entry of the content_items claim in a Tool's
// LtiDeepLinkingResponse.
type ContentItem struct {
	Type   string            `json:"type"`
	URL    string            `json:"url,omitempty"`
	Title  string            `json:"title,omitempty"`
	Text   string            `json:"text,omitempty"`
	HTML   string            `json:"html,omitempty"`
	Custom map[string]string `json:"custom,omitempty"`

	LineItem *LineItem `json:"lineItem,omitempty"`
}

// ParseContentItems decodes the content_items claim value and gates every
// item's type against AcceptedTypes. One unsupported item rejects the
// entire batch.
func ParseContentItems(claim any) ([]ContentItem, error) {
	raw, err := json.Marshal(claim)
	if err != nil {
		return nil, fmt.Errorf("deeplinking: invalid content_items claim: %w", err)
	}
	var items []ContentItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("deeplinking: invalid content_items claim: %w", err)
	}
	for _, it := range items {
		if !typeAccepted(it.Type) {
			return nil, fmt.Errorf("%w: %q", ErrContentTypeNotSupported, it.Type)
		}
	}
	return items, nil
}
