package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "valid json untouched", input: `{"a": 1, "b": "x"}`, want: `{"a": 1, "b": "x"}`},
		{name: "missing opening quote", input: `{"a": 1, prompts": ["x"]}`, want: `{"a": 1, "prompts": ["x"]}`},
		{name: "first key", input: `{ type": "faq"}`, want: `{ "type": "faq"}`},
		{name: "array of strings", input: `["What is it?", "How much?"]`, want: `["What is it?", "How much?"]`},
		{name: "bare words in array kept", input: `[1, true]`, want: `[1, true]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepairJSON(tt.input))
		})
	}
}

func TestParseJSONReply(t *testing.T) {
	t.Run("fenced array", func(t *testing.T) {
		var prompts []string
		err := ParseJSONReply("```json\n[\"What do you offer?\", \"Where are you?\"]\n```", &prompts)
		require.NoError(t, err)
		assert.Equal(t, []string{"What do you offer?", "Where are you?"}, prompts)
	})

	t.Run("repaired object", func(t *testing.T) {
		var out struct {
			Prompts []string `json:"prompts"`
		}
		err := ParseJSONReply(`{prompts": ["Hi?"]}`, &out)
		require.NoError(t, err)
		assert.Equal(t, []string{"Hi?"}, out.Prompts)
	})

	t.Run("garbage", func(t *testing.T) {
		var prompts []string
		assert.Error(t, ParseJSONReply("sure! here you go", &prompts))
	})
}
