package llmprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
)

func TestConvertOpenAIMessagesAttachesImageToLastUserTurn(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "be helpful"},
		{Role: model.RoleUser, Content: "first"},
		{Role: model.RoleAssistant, Content: "ack"},
		{Role: model.RoleComputer, Content: "observation"},
	}
	images := []model.ImageInput{{Base64: "abcd", MediaType: model.MediaPNG}}

	out := convertOpenAIMessages(messages, images)
	require.Len(t, out, 4)
	assert.Equal(t, "system", out[0].Role)
	last := out[3]
	require.Len(t, last.MultiContent, 2)
	assert.Contains(t, last.MultiContent[1].ImageURL.URL, "data:image/png;base64,abcd")
}

func TestConvertOpenAIMessagesToolRoundTrip(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{ID: "1", Name: "click", Arguments: map[string]any{"x": 1}}}},
		{Role: model.RoleTool, ToolCallID: "1", Content: `{"success":true}`},
	}
	out := convertOpenAIMessages(messages, nil)
	require.Len(t, out, 2)
	require.Len(t, out[0].ToolCalls, 1)
	assert.Equal(t, "click", out[0].ToolCalls[0].Function.Name)
	assert.Equal(t, "1", out[1].ToolCallID)
}

func TestConvertOpenAIToolsCarriesSchema(t *testing.T) {
	defs := []registry.Definition{{
		Name:        "move",
		Description: "move the cursor",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}}
	out := convertOpenAITools(defs)
	require.Len(t, out, 1)
	assert.Equal(t, "move", out[0].Function.Name)
}
