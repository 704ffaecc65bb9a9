package lti1p1

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

/*
LTI 1.1 Outcomes Management service (imsx POX envelope).

Inbound replaceResultRequest bodies look like:

	<imsx_POXEnvelopeRequest xmlns="http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0">
	  <imsx_POXHeader>
	    <imsx_POXRequestHeaderInfo>
	      <imsx_version>V1.0</imsx_version>
	      <imsx_messageIdentifier>528243ba5241b</imsx_messageIdentifier>
	    </imsx_POXRequestHeaderInfo>
	  </imsx_POXHeader>
	  <imsx_POXBody>
	    <replaceResultRequest>
	      <resultRecord>
	        <sourcedGUID><sourcedId>feb-123-456::28883</sourcedId></sourcedGUID>
	        <result><resultScore><textString>0.4</textString></resultScore></result>
	      </resultRecord>
	    </replaceResultRequest>
	  </imsx_POXBody>
	</imsx_POXEnvelopeRequest>

Only replaceResultRequest is handled; other actions produce an
"unsupported" response envelope rather than an error.
*/

// OutcomeNamespace is the imsx POX namespace for LTI 1.1 Outcomes bodies.
const OutcomeNamespace = "http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0"

// Outcome response codeMajor values.
const (
	CodeMajorSuccess     = "success"
	CodeMajorFailure     = "failure"
	CodeMajorUnsupported = "unsupported"
)

// ActionReplaceResult is the only Outcomes action with replace semantics.
const ActionReplaceResult = "replaceResultRequest"

// OutcomeRequest is the parsed form of an inbound Outcomes XML body.
type OutcomeRequest struct {
	MessageIdentifier string
	SourcedID         string
	Score             float64
	Action            string
}

// ParseOutcomeXML walks the imsx envelope and extracts the message
// identifier, sourcedId, score and action element name. Any missing
// required node is fatal; the score must be a float in [0.0, 1.0].
func ParseOutcomeXML(body []byte) (OutcomeRequest, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		req        OutcomeRequest
		inBody     bool
		haveAction bool
		haveMsgID  bool
		haveSrcID  bool
		scoreText  string
		haveScore  bool
		// element text capture
		capture *string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return OutcomeRequest{}, fmt.Errorf("%w: body is not valid XML: %v", ErrMalformedRequest, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "imsx_messageIdentifier":
				capture = &req.MessageIdentifier
				haveMsgID = true
			case "sourcedId":
				capture = &req.SourcedID
				haveSrcID = true
			case "textString":
				capture = &scoreText
				haveScore = true
			case "imsx_POXBody":
				inBody = true
			default:
				// First child element of imsx_POXBody names the action.
				if inBody && !haveAction {
					req.Action = t.Name.Local
					haveAction = true
				}
				capture = nil
			}
		case xml.EndElement:
			if t.Name.Local == "imsx_POXBody" {
				inBody = false
			}
			capture = nil
		case xml.CharData:
			if capture != nil {
				*capture += string(t)
			}
		}
	}

	if !haveMsgID {
		return OutcomeRequest{}, fmt.Errorf("%w: missing imsx_messageIdentifier", ErrMalformedRequest)
	}
	if !haveAction {
		return OutcomeRequest{}, fmt.Errorf("%w: missing imsx_POXBody action", ErrMalformedRequest)
	}
	if !haveSrcID {
		return OutcomeRequest{}, fmt.Errorf("%w: missing sourcedId", ErrMalformedRequest)
	}
	if !haveScore {
		return OutcomeRequest{}, fmt.Errorf("%w: missing score textString", ErrMalformedRequest)
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(scoreText), 64)
	if err != nil {
		return OutcomeRequest{}, fmt.Errorf("%w: score %q is not a number", ErrMalformedRequest, scoreText)
	}
	if score < 0.0 || score > 1.0 {
		return OutcomeRequest{}, ErrScoreOutOfRange
	}
	req.Score = score
	return req, nil
}

// OutcomeResponse renders into the fixed imsx response envelope.
type OutcomeResponse struct {
	CodeMajor         string // success | failure | unsupported
	Description       string
	MessageIdentifier string
	Body              string // e.g. "<replaceResultResponse/>", may be empty
}

// UnsupportedOutcomeResponse is the canned reply for actions other than
// replaceResultRequest.
func UnsupportedOutcomeResponse() OutcomeResponse {
	return OutcomeResponse{
		CodeMajor:         CodeMajorUnsupported,
		Description:       "Target does not support the requested operation.",
		MessageIdentifier: "unknown",
	}
}

// FailureOutcomeResponse builds a failure envelope with the given
// description and message identifier (use "unknown" when unparsed).
func FailureOutcomeResponse(messageIdentifier, description string) OutcomeResponse {
	if messageIdentifier == "" {
		messageIdentifier = "unknown"
	}
	return OutcomeResponse{
		CodeMajor:         CodeMajorFailure,
		Description:       description,
		MessageIdentifier: messageIdentifier,
	}
}

// SuccessOutcomeResponse builds the success envelope for a handled
// replaceResultRequest.
func SuccessOutcomeResponse(messageIdentifier, sourcedID string, score float64) OutcomeResponse {
	return OutcomeResponse{
		CodeMajor:         CodeMajorSuccess,
		Description:       fmt.Sprintf("Score for %s is now %v", sourcedID, score),
		MessageIdentifier: messageIdentifier,
		Body:              "<replaceResultResponse/>",
	}
}

// XML renders the response envelope. Text fields are XML-escaped; Body is
// inserted verbatim.
func (o OutcomeResponse) XML() string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<imsx_POXEnvelopeResponse xmlns="%s">
  <imsx_POXHeader>
    <imsx_POXResponseHeaderInfo>
      <imsx_version>V1.0</imsx_version>
      <imsx_messageIdentifier>%s</imsx_messageIdentifier>
      <imsx_statusInfo>
        <imsx_codeMajor>%s</imsx_codeMajor>
        <imsx_severity>status</imsx_severity>
        <imsx_description>%s</imsx_description>
        <imsx_messageRefIdentifier></imsx_messageRefIdentifier>
      </imsx_statusInfo>
    </imsx_POXResponseHeaderInfo>
  </imsx_POXHeader>
  <imsx_POXBody>%s</imsx_POXBody>
</imsx_POXEnvelopeResponse>`,
		OutcomeNamespace,
		escapeXML(o.MessageIdentifier),
		escapeXML(o.CodeMajor),
		escapeXML(o.Description),
		o.Body,
	)
}

func escapeXML(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
