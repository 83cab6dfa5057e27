package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[string]any
	}{
		{"plain", `{"jailbreak": true, "threat": false}`, map[string]any{"jailbreak": true, "threat": false}},
		{"json fence", "```json\n{\"score\": 0.5}\n```", map[string]any{"score": 0.5}},
		{"bare fence", "```\n{\"ok\": \"yes\"}\n```", map[string]any{"ok": "yes"}},
		{"leading prose", "Here you go: {\"a\": 1} thanks", map[string]any{"a": float64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSONObject(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSONObjectErrors(t *testing.T) {
	_, err := ParseJSONObject("no braces here")
	assert.ErrorIs(t, err, ErrNoJSONObject)

	_, err = ParseJSONObject("{not json}")
	assert.Error(t, err)

	_, err = ParseJSONObject(string([]byte{0xff, '{', '}'}))
	assert.Error(t, err)
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(true))
	assert.True(t, Truthy("true"))
	assert.True(t, Truthy("Yes"))
	assert.True(t, Truthy(float64(1)))
	assert.False(t, Truthy("false"))
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(float64(0)))
	assert.False(t, Truthy([]any{}))
}

func TestSafeSnippet(t *testing.T) {
	assert.Equal(t, "short", SafeSnippet("short"))
	long := strings.Repeat("é", 300)
	got := SafeSnippet(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), maxErrSnippet+3)
}
