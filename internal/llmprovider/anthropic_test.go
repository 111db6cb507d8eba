package llmprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
)

func TestConvertMessagesSplitsSystemPrompt(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "be terse"},
		{Role: model.RoleUser, Content: "hello"},
	}
	out, system, err := convertMessages(messages, nil)
	require.NoError(t, err)
	assert.Equal(t, "be terse", system)
	assert.Len(t, out, 1)
}

func TestConvertMessagesAttachesImageToLastTurn(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleUser, Content: "look at this"},
		{Role: model.RoleAssistant, Content: "ok"},
		{Role: model.RoleComputer, Content: "here"},
	}
	images := []model.ImageInput{{Base64: "zz", MediaType: model.MediaPNG}}
	out, _, err := convertMessages(messages, images)
	require.NoError(t, err)
	require.Len(t, out, 3)
}

func TestConvertToolsBuildsSchema(t *testing.T) {
	defs := []registry.Definition{{
		Name:        "scroll",
		Description: "scroll the viewport",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"dx": map[string]any{"type": "integer"},
			},
		},
	}}
	out, err := convertTools(defs)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfTool)
	assert.Equal(t, "scroll", out[0].OfTool.Name)
}

func TestImageBlockRejectsMissingData(t *testing.T) {
	_, err := imageBlock(model.ImageInput{Label: "shot"})
	assert.Error(t, err)
}

func TestImageBlockDefaultsMediaType(t *testing.T) {
	_, err := imageBlock(model.ImageInput{Base64: "zz"})
	require.NoError(t, err)
}
