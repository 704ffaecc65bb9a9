package lti1p3

import (
	"context"
	"fmt"
)

/*
LTI Proctoring Services consumer.

Runs the assessment proctoring handshake: the platform launches the
proctoring Tool with LtiStartProctoring, the Tool hands control back
with a signed LtiStartAssessment token, and the platform may later
launch LtiEndAssessment to close the attempt.
*/

// ProctoringConsumer extends the base consumer with the proctoring
// message flows.
type ProctoringConsumer struct {
	*Consumer

	proctoring *ProctoringLaunchData
}

// NewProctoringConsumer wraps an existing consumer.
func NewProctoringConsumer(c *Consumer) *ProctoringConsumer {
	return &ProctoringConsumer{Consumer: c}
}

// SetProctoringData binds the assessment session fields for the next
// proctoring launch. session_data and a positive attempt number are
// required.
func (p *ProctoringConsumer) SetProctoringData(pd ProctoringLaunchData) error {
	if pd.SessionData == "" {
		return fmt.Errorf("%w: session_data", ErrMissingRequiredData)
	}
	if pd.AttemptNumber < 1 {
		return fmt.Errorf("%w: attempt_number", ErrMissingRequiredData)
	}
	p.proctoring = &pd
	return nil
}

// GenerateLaunchRequestFor signs a proctoring launch message. Only
// LtiStartProctoring and LtiEndAssessment are platform-initiated;
// anything else is an error.
func (p *ProctoringConsumer) GenerateLaunchRequestFor(ld LaunchData, pr PreflightResponse) (*LaunchResponse, error) {
	if err := p.ValidatePreflightResponse(pr); err != nil {
		return nil, err
	}
	if ld.Proctoring != nil {
		if err := p.SetProctoringData(*ld.Proctoring); err != nil {
			return nil, err
		}
	}
	if p.proctoring == nil {
		return nil, fmt.Errorf("%w: proctoring data", ErrMissingRequiredData)
	}
	if err := p.ApplyLaunchData(ld); err != nil {
		return nil, err
	}

	msg, err := p.LaunchMessage(false)
	if err != nil {
		return nil, err
	}
	msg[ClaimAttemptNumber] = p.proctoring.AttemptNumber
	msg[ClaimSessionData] = p.proctoring.SessionData

	switch ld.MessageType {
	case MessageTypeStartProctoring:
		msg[ClaimMessageType] = MessageTypeStartProctoring
		if p.proctoring.StartAssessmentURL == "" {
			return nil, fmt.Errorf("%w: start_assessment_url", ErrMissingRequiredData)
		}
		msg[ClaimStartAssessmentURL] = p.proctoring.StartAssessmentURL
		if p.proctoring.AssessmentControlURL != "" {
			msg[ClaimACS] = map[string]any{
				"assessment_control_url": p.proctoring.AssessmentControlURL,
				"actions":                p.proctoring.AssessmentControlActions,
			}
		}
	case MessageTypeEndAssessment:
		msg[ClaimMessageType] = MessageTypeEndAssessment
	default:
		return nil, fmt.Errorf("%w: message_type %q", ErrInvalidClaimValue, ld.MessageType)
	}
	return p.signLaunch(msg, pr)
}

// CheckAndDecodeToken verifies a Tool's LtiStartAssessment token and
// checks every claim the proctoring handshake requires. The Tool must
// echo the session_data and resource link of the start launch and carry
// the same attempt number.
func (p *ProctoringConsumer) CheckAndDecodeToken(ctx context.Context, token string) (map[string]any, error) {
	if p.proctoring == nil {
		return nil, fmt.Errorf("%w: proctoring data", ErrMissingRequiredData)
	}
	claims, err := p.ToolKeys().ValidateAndDecode(ctx, token)
	if err != nil {
		return nil, err
	}

	if mt, _ := claims[ClaimMessageType].(string); mt != MessageTypeStartAssessment {
		return nil, fmt.Errorf("%w: message_type %q", ErrInvalidClaimValue, claims[ClaimMessageType])
	}
	if v, _ := claims[ClaimVersion].(string); v != LTIVersion {
		return nil, fmt.Errorf("%w: version %q", ErrInvalidClaimValue, claims[ClaimVersion])
	}
	if sd, _ := claims[ClaimSessionData].(string); sd != p.proctoring.SessionData {
		return nil, fmt.Errorf("%w: session_data mismatch", ErrInvalidClaimValue)
	}

	link, _ := claims[ClaimResourceLink].(map[string]any)
	linkID, _ := link["id"].(string)
	if linkID == "" || linkID != p.proctoring.ResourceLinkID {
		return nil, fmt.Errorf("%w: resource_link mismatch", ErrInvalidClaimValue)
	}

	// JSON numbers decode as float64.
	attempt, ok := claims[ClaimAttemptNumber].(float64)
	if !ok || int(attempt) != p.proctoring.AttemptNumber {
		return nil, fmt.Errorf("%w: attempt_number mismatch", ErrInvalidClaimValue)
	}
	return claims, nil
}
