package lti1p3

import (
	"context"
	"fmt"

	"github.com/openlms/lticore/pkg/lti1p3/ags"
	"github.com/openlms/lticore/pkg/lti1p3/deeplinking"
	"github.com/openlms/lticore/pkg/lti1p3/nrps"
)

/*
LTI Advantage consumer.

Layers the Advantage services (AGS, Deep Linking, NRPS) over the base
consumer. Each service is opt-in per launch: enabling one merges its
claim into the next launch message and widens the scopes the token
endpoint will grant.
*/

// LaunchMode selects which launch flow a cached LaunchData drives.
type LaunchMode int

const (
	ModeResourceLink LaunchMode = iota
	ModeDeepLinking
	ModeStartProctoring
	ModeEndAssessment
)

// LaunchModeFromMessageType maps a stored message type onto a launch
// mode. Empty and unknown types fall back to a resource link launch.
func LaunchModeFromMessageType(messageType string) LaunchMode {
	switch messageType {
	case MessageTypeDeepLinkingRequest:
		return ModeDeepLinking
	case MessageTypeStartProctoring:
		return ModeStartProctoring
	case MessageTypeEndAssessment:
		return ModeEndAssessment
	default:
		return ModeResourceLink
	}
}

// AdvantageConsumer extends the base consumer with the LTI Advantage
// services.
type AdvantageConsumer struct {
	*Consumer

	ags *ags.Service
	dl  *deeplinking.Service
}

// NewAdvantageConsumer wraps an existing consumer.
func NewAdvantageConsumer(c *Consumer) *AdvantageConsumer {
	return &AdvantageConsumer{Consumer: c}
}

// EnableAGS advertises the Assignment and Grades Services on the next
// launch. allowProgrammaticGrades gates line item creation and the
// score scope.
func (a *AdvantageConsumer) EnableAGS(lineItemsURL, lineItemURL string, allowProgrammaticGrades bool) {
	a.ags = ags.New(lineItemsURL, lineItemURL, allowProgrammaticGrades, true, allowProgrammaticGrades)
	a.SetExtraClaims(a.ags.LaunchClaim())
}

// EnableDeepLinking arms the deep linking flow for launches whose
// cached message type is LtiDeepLinkingRequest.
func (a *AdvantageConsumer) EnableDeepLinking(launchURL, returnURL string) {
	a.dl = deeplinking.New(launchURL, returnURL)
}

// EnableNRPS advertises the Names and Role Provisioning Services on the
// next launch.
func (a *AdvantageConsumer) EnableNRPS(contextMembershipsURL string) {
	a.SetExtraClaims(nrps.New(contextMembershipsURL).LaunchClaim())
}

// GenerateLaunchRequestFor signs the launch message matching the cached
// snapshot's message type. Deep linking launches swap the message type
// and target, attach the settings claim, and omit resource-link-only
// service claims.
func (a *AdvantageConsumer) GenerateLaunchRequestFor(ld LaunchData, pr PreflightResponse) (*LaunchResponse, error) {
	if err := a.ValidatePreflightResponse(pr); err != nil {
		return nil, err
	}
	if err := a.ApplyLaunchData(ld); err != nil {
		return nil, err
	}

	switch LaunchModeFromMessageType(ld.MessageType) {
	case ModeDeepLinking:
		if a.dl == nil {
			return nil, fmt.Errorf("%w: deep linking not enabled", ErrMissingRequiredData)
		}
		msg, err := a.LaunchMessage(false)
		if err != nil {
			return nil, err
		}
		msg[ClaimMessageType] = MessageTypeDeepLinkingRequest
		msg[ClaimTargetLinkURI] = a.dl.LaunchURL()
		dlClaim, err := a.dl.LaunchClaim(ld.ResourceLinkTitle, "", nil, ld.ResourceLinkID)
		if err != nil {
			return nil, err
		}
		for k, v := range dlClaim {
			msg[k] = v
		}
		return a.signLaunch(msg, pr)
	default:
		return a.Consumer.GenerateLaunchRequest(pr)
	}
}

// CheckAndDecodeDeepLinkingToken verifies a Tool's LtiDeepLinkingResponse
// JWT and returns its content items. The whole batch is rejected when any
// item's type is unsupported.
func (a *AdvantageConsumer) CheckAndDecodeDeepLinkingToken(ctx context.Context, token string) ([]deeplinking.ContentItem, error) {
	claims, err := a.ToolKeys().ValidateAndDecode(ctx, token)
	if err != nil {
		return nil, err
	}
	if mt, _ := claims[ClaimMessageType].(string); mt != MessageTypeDeepLinkingResponse {
		return nil, fmt.Errorf("%w: message_type %q", ErrInvalidClaimValue, claims[ClaimMessageType])
	}
	items, ok := claims[deeplinking.ClaimContentItems]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredClaim, deeplinking.ClaimContentItems)
	}
	return deeplinking.ParseContentItems(items)
}
