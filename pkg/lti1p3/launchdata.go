package lti1p3

/*
Launch data snapshot.

A LaunchData value carries everything needed to rebuild one launch
message after the OIDC round trip: who is launching, into what context,
at which resource link, plus any message-specific extras. It is a plain
value type so it can be cached as JSON between the preflight and the
callback without losing information.
*/

// ProctoringLaunchData holds the assessment-session fields carried only
// by proctoring launches.
type ProctoringLaunchData struct {
	AttemptNumber            int      `json:"attempt_number"`
	SessionData              string   `json:"session_data"`
	StartAssessmentURL       string   `json:"start_assessment_url,omitempty"`
	ResourceLinkID           string   `json:"resource_link_id,omitempty"`
	AssessmentControlURL     string   `json:"assessment_control_url,omitempty"`
	AssessmentControlActions []string `json:"assessment_control_actions,omitempty"`
}

// LaunchData is the cached snapshot of one pending launch.
type LaunchData struct {
	UserID         string `json:"user_id"`
	UserRole       string `json:"user_role"`
	ExternalUserID string `json:"external_user_id,omitempty"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`

	// PreferredUsername is sent as the OIDC preferred_username claim.
	PreferredUsername string `json:"preferred_username,omitempty"`

	// MessageType selects the launch flow. Empty means a plain
	// LtiResourceLinkRequest.
	MessageType string `json:"message_type,omitempty"`

	ContextID    string `json:"context_id,omitempty"`
	ContextTitle string `json:"context_title,omitempty"`
	ContextLabel string `json:"context_label,omitempty"`
	ContextType  string `json:"context_type,omitempty"`

	ResourceLinkID    string `json:"resource_link_id"`
	ResourceLinkTitle string `json:"resource_link_title,omitempty"`

	// LaunchPresentationDocumentTarget is "iframe", "frame" or "window".
	LaunchPresentationDocumentTarget string `json:"launch_presentation_document_target,omitempty"`

	CustomParameters map[string]string `json:"custom_parameters,omitempty"`

	Proctoring *ProctoringLaunchData `json:"proctoring,omitempty"`
}
