package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
)

// AnthropicConfig holds the settings needed to build an AnthropicNativeProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// AnthropicNativeProvider drives Claude through the SDK's own tool-use
// channel: tool definitions become anthropic.ToolUnionParams, and tool calls
// come back as ToolUseBlocks rather than text the agent must parse.
type AnthropicNativeProvider struct {
	client       anthropic.Client
	defaultModel string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewAnthropicNativeProvider builds a provider bound to one Anthropic API key.
func NewAnthropicNativeProvider(cfg AnthropicConfig) (*AnthropicNativeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicNativeProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *AnthropicNativeProvider) Name() string { return "anthropic" }
func (p *AnthropicNativeProvider) Mode() Mode    { return ModeNative }

func (p *AnthropicNativeProvider) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *AnthropicNativeProvider) Chat(ctx context.Context, messages []model.Message, images []model.ImageInput, tools []registry.Definition, opts ChatOptions) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	msgs, system, err := convertMessages(messages, images)
	if err != nil {
		return nil, fmt.Errorf("anthropic: convert messages: %w", err)
	}

	modelName := opts.Model
	if modelName == "" {
		modelName = p.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		Messages:  msgs,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		toolParams, err := convertTools(tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: convert tools: %w", err)
		}
		params.Tools = toolParams
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	resp := &Response{
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += variant.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			if len(variant.Input) > 0 {
				if err := json.Unmarshal(variant.Input, &args); err != nil {
					args = map[string]any{}
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: args,
			})
		}
	}
	return resp, nil
}

// convertMessages turns the shared conversation history into Anthropic's
// message params, splitting out the system message (Anthropic carries it
// out-of-band) and attaching images to the most recent non-assistant turn.
func convertMessages(messages []model.Message, images []model.ImageInput) ([]anthropic.MessageParam, string, error) {
	var out []anthropic.MessageParam
	var system string

	lastImageable := -1
	for i, m := range messages {
		if m.Role != model.RoleAssistant {
			lastImageable = i
		}
	}

	for i, m := range messages {
		if m.Role == model.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			content = append(content, anthropic.NewTextBlock(m.Content))
		}
		if m.Role == model.RoleTool {
			content = append(content, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		}
		for _, tc := range m.ToolCalls {
			content = append(content, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
		}
		if i == lastImageable {
			for _, img := range images {
				block, err := imageBlock(img)
				if err != nil {
					return nil, "", err
				}
				content = append(content, block)
			}
		}
		if len(content) == 0 {
			continue
		}

		if m.Role == model.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, system, nil
}

func imageBlock(img model.ImageInput) (anthropic.ContentBlockParamUnion, error) {
	if img.Base64 == "" {
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("image %q has no inline data", img.Label)
	}
	mediaType := "image/" + string(img.MediaType)
	if img.MediaType == "" {
		mediaType = "image/png"
	}
	return anthropic.NewImageBlockBase64(mediaType, img.Base64), nil
}

func convertTools(tools []registry.Definition) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		raw, err := json.Marshal(t.Parameters)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for %s: %w", t.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("tool schema for %s: %w", t.Name, err)
		}
		tp := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if tp.OfTool != nil {
			tp.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, tp)
	}
	return out, nil
}
