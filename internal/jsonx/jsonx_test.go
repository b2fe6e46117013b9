package jsonx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare object",
			input: `{"score": 70}`,
			want:  `{"score": 70}`,
		},
		{
			name:  "markdown fenced",
			input: "Here you go:\n```json\n{\"score\": 70, \"label\": \"OK\"}\n```\nHope that helps!",
			want:  `{"score": 70, "label": "OK"}`,
		},
		{
			name:  "leading prose",
			input: `Sure! The evaluation is {"score": 55, "tips": ["add dates"]}.`,
			want:  `{"score": 55, "tips": ["add dates"]}`,
		},
		{
			name:  "braces inside strings",
			input: `{"body": "use {placeholders} like this", "n": 1}`,
			want:  `{"body": "use {placeholders} like this", "n": 1}`,
		},
		{
			name:  "escaped quote inside string",
			input: `{"body": "she said \"hi}\" today"}`,
			want:  `{"body": "she said \"hi}\" today"}`,
		},
		{
			name:  "nested objects",
			input: `x {"a": {"b": {"c": 1}}} y`,
			want:  `{"a": {"b": {"c": 1}}}`,
		},
		{
			name:  "no object",
			input: "the model refused to answer",
			want:  "",
		},
		{
			name:  "unterminated object",
			input: `{"score": 70`,
			want:  "",
		},
		{
			name:  "invalid then valid",
			input: `{broken} then {"ok": true}`,
			want:  `{"ok": true}`,
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExtractObject(tt.input))
		})
	}
}

func TestDecodeObject(t *testing.T) {
	var out struct {
		Score int    `json:"score"`
		Label string `json:"label"`
	}
	require.True(t, DecodeObject("prefix {\"score\": 82, \"label\": \"Strong\"} suffix", &out))
	require.Equal(t, 82, out.Score)
	require.Equal(t, "Strong", out.Label)

	require.False(t, DecodeObject("no json here", &out))
}
