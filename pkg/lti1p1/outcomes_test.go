package lti1p1

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func outcomeXML(msgID, sourcedID, score, action string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<imsx_POXEnvelopeRequest xmlns="%s">
  <imsx_POXHeader>
    <imsx_POXRequestHeaderInfo>
      <imsx_version>V1.0</imsx_version>
      <imsx_messageIdentifier>%s</imsx_messageIdentifier>
    </imsx_POXRequestHeaderInfo>
  </imsx_POXHeader>
  <imsx_POXBody>
    <%s>
      <resultRecord>
        <sourcedGUID><sourcedId>%s</sourcedId></sourcedGUID>
        <result><resultScore><textString>%s</textString></resultScore></result>
      </resultRecord>
    </%s>
  </imsx_POXBody>
</imsx_POXEnvelopeRequest>`, OutcomeNamespace, msgID, action, sourcedID, score, action)
}

func TestParseOutcomeXML(t *testing.T) {
	req, err := ParseOutcomeXML([]byte(outcomeXML("528243ba5241b", "feb-123::88", "0.4", "replaceResultRequest")))
	require.NoError(t, err)
	require.Equal(t, "528243ba5241b", req.MessageIdentifier)
	require.Equal(t, "feb-123::88", req.SourcedID)
	require.Equal(t, "replaceResultRequest", req.Action)
	require.InDelta(t, 0.4, req.Score, 1e-9)
}

func TestParseOutcomeXMLOtherAction(t *testing.T) {
	req, err := ParseOutcomeXML([]byte(outcomeXML("m1", "s1", "0.4", "readResultRequest")))
	require.NoError(t, err)
	require.Equal(t, "readResultRequest", req.Action)
}

func TestParseOutcomeXMLErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"not xml", "{}", ErrMalformedRequest},
		{"score out of range", outcomeXML("m", "s", "1.5", "replaceResultRequest"), ErrScoreOutOfRange},
		{"score not numeric", outcomeXML("m", "s", "high", "replaceResultRequest"), ErrMalformedRequest},
		{
			"missing sourcedId",
			strings.Replace(outcomeXML("m", "s", "0.5", "replaceResultRequest"), "<sourcedGUID><sourcedId>s</sourcedId></sourcedGUID>", "", 1),
			ErrMalformedRequest,
		},
		{
			"missing message identifier",
			strings.Replace(outcomeXML("m", "s", "0.5", "replaceResultRequest"), "<imsx_messageIdentifier>m</imsx_messageIdentifier>", "", 1),
			ErrMalformedRequest,
		},
		{
			"missing score",
			strings.Replace(outcomeXML("m", "s", "0.5", "replaceResultRequest"), "<result><resultScore><textString>0.5</textString></resultScore></result>", "", 1),
			ErrMalformedRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOutcomeXML([]byte(tt.body))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOutcomeResponseXML(t *testing.T) {
	resp := SuccessOutcomeResponse("m1", "s1", 0.4)
	out := resp.XML()
	require.Contains(t, out, "<imsx_codeMajor>success</imsx_codeMajor>")
	require.Contains(t, out, "<imsx_messageIdentifier>m1</imsx_messageIdentifier>")
	require.Contains(t, out, "<imsx_POXBody><replaceResultResponse/></imsx_POXBody>")
	require.Contains(t, out, OutcomeNamespace)
}

func TestUnsupportedOutcomeResponse(t *testing.T) {
	out := UnsupportedOutcomeResponse().XML()
	require.Contains(t, out, "<imsx_codeMajor>unsupported</imsx_codeMajor>")
	require.Contains(t, out, "<imsx_messageIdentifier>unknown</imsx_messageIdentifier>")
	require.Contains(t, out, "<imsx_POXBody></imsx_POXBody>")
}

func TestOutcomeResponseEscapesText(t *testing.T) {
	resp := FailureOutcomeResponse("m<1>", `bad & "worse"`)
	out := resp.XML()
	require.Contains(t, out, "m&lt;1&gt;")
	require.Contains(t, out, "bad &amp;")
	require.NotContains(t, out, `bad & "worse"`)
}
