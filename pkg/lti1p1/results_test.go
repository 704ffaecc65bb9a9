package lti1p1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResultJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantScore *float64
		wantErr   error
	}{
		{
			name:      "object with score",
			body:      `{"@context":"http://purl.imsglobal.org/ctx/lis/v2/Result","@type":"Result","resultScore":0.75}`,
			wantScore: ptr(0.75),
		},
		{
			name:      "one element array",
			body:      `[{"@context":"x","@type":"Result","resultScore":0.5}]`,
			wantScore: ptr(0.5),
		},
		{
			name: "missing score is a clear",
			body: `{"@context":"x","@type":"Result"}`,
		},
		{
			name:    "wrong type",
			body:    `{"@context":"x","@type":"NotResult","resultScore":0.5}`,
			wantErr: ErrMalformedRequest,
		},
		{
			name:    "missing context",
			body:    `{"@type":"Result","resultScore":0.5}`,
			wantErr: ErrMalformedRequest,
		},
		{
			name:    "score above range",
			body:    `{"@context":"x","@type":"Result","resultScore":1.5}`,
			wantErr: ErrScoreOutOfRange,
		},
		{
			name:    "score below range",
			body:    `{"@context":"x","@type":"Result","resultScore":-0.1}`,
			wantErr: ErrScoreOutOfRange,
		},
		{
			name:    "score not numeric",
			body:    `{"@context":"x","@type":"Result","resultScore":true}`,
			wantErr: ErrScoreOutOfRange,
		},
		{
			name:    "not json",
			body:    `<xml/>`,
			wantErr: ErrMalformedRequest,
		},
		{
			name:    "empty array",
			body:    `[]`,
			wantErr: ErrMalformedRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, _, err := ParseResultJSON([]byte(tt.body))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantScore == nil {
				require.Nil(t, score)
			} else {
				require.NotNil(t, score)
				require.InDelta(t, *tt.wantScore, *score, 1e-9)
			}
		})
	}
}

func TestParseResultJSONComment(t *testing.T) {
	score, comment, err := ParseResultJSON([]byte(`{"@context":"x","@type":"Result","resultScore":0.9,"comment":"well done"}`))
	require.NoError(t, err)
	require.NotNil(t, score)
	require.Equal(t, "well done", comment)
}

func TestGetResultRounding(t *testing.T) {
	resp := GetResult(ptr(0.666666), "ok")
	require.Equal(t, 0.67, resp["resultScore"])
	require.Equal(t, "ok", resp["comment"])
	require.Equal(t, "Result", resp["@type"])
}

func TestGetResultWithoutScore(t *testing.T) {
	resp := GetResult(nil, "ignored")
	_, hasScore := resp["resultScore"]
	_, hasComment := resp["comment"]
	require.False(t, hasScore)
	require.False(t, hasComment)
}

func ptr(f float64) *float64 { return &f }
