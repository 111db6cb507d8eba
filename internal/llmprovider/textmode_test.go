package llmprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTextToolCallsThoughtActionBlocks(t *testing.T) {
	reply := `<Thought>I should click the button.</Thought>
<Action>
[{"tool": "left_double", "arguments": {"x": 500, "y": 500}}]
</Action>
trailing notes`

	content, calls, perr := ParseTextToolCalls(reply)
	require.Nil(t, perr)
	require.Len(t, calls, 1)
	assert.Equal(t, "left_double", calls[0].Name)
	assert.Equal(t, float64(500), calls[0].Arguments["x"])
	assert.Contains(t, content, "trailing notes")
	assert.NotContains(t, content, "<Thought>")
	assert.NotContains(t, content, "<Action>")
}

func TestParseTextToolCallsBareArray(t *testing.T) {
	reply := `Sure, here goes: [{"tool": "scroll", "arguments": {"dx": 0, "dy": -100}}] done.`
	content, calls, perr := ParseTextToolCalls(reply)
	require.Nil(t, perr)
	require.Len(t, calls, 1)
	assert.Equal(t, "scroll", calls[0].Name)
	assert.Equal(t, reply, content, "content is left untouched when there is no <Action> block")
}

func TestParseTextToolCallsNoActionIsPlainReply(t *testing.T) {
	content, calls, perr := ParseTextToolCalls("just chatting, no tools here")
	assert.Nil(t, perr)
	assert.Empty(t, calls)
	assert.Equal(t, "just chatting, no tools here", content)
}

func TestParseTextToolCallsMalformedJSONReturnsParseError(t *testing.T) {
	reply := `<Action>[{"tool": "click", "arguments": {x: 1}}]</Action>`
	_, calls, perr := ParseTextToolCalls(reply)
	require.NotNil(t, perr)
	assert.Empty(t, calls)
	assert.Contains(t, perr.Raw, `"tool": "click"`)
}

func TestStripCommentsIgnoresQuotedHashAndSlashes(t *testing.T) {
	in := `[{"tool": "type", "arguments": {"text": "a # b // c"}}] // trailing comment
# another one`
	out := stripComments(in)
	assert.Contains(t, out, `"text": "a # b // c"`)
	assert.NotContains(t, out, "trailing comment")
	assert.NotContains(t, out, "another one")
}

func TestFindBareJSONArrayBalancesNestedBrackets(t *testing.T) {
	s := `noise [{"tool": "x", "arguments": {"a": [1, 2, 3]}}] more noise`
	got := findBareJSONArray(s)
	assert.Equal(t, `[{"tool": "x", "arguments": {"a": [1, 2, 3]}}]`, got)
}
