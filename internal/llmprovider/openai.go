package llmprovider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
)

// OpenAIConfig holds the settings needed to build an OpenAICompatProvider.
// BaseURL lets the same client target any OpenAI-compatible endpoint (local
// inference servers, proxies, etc.), which is also why Mode is explicit
// rather than inferred: not every such endpoint exposes real tool-calling.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Mode         Mode
}

// OpenAICompatProvider talks to OpenAI's Chat Completions API, or anything
// compatible with it. When Mode is ModeText it ignores the API's native
// tools field and instead asks ParseTextToolCalls to recover tool calls
// from the reply body, for endpoints that only do free-text generation.
type OpenAICompatProvider struct {
	client       *openai.Client
	defaultModel string
	mode         Mode

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewOpenAICompatProvider builds a provider bound to one API key/endpoint.
func NewOpenAICompatProvider(cfg OpenAIConfig) (*OpenAICompatProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeNative
	}

	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAICompatProvider{
		client:       openai.NewClientWithConfig(oaiCfg),
		defaultModel: cfg.DefaultModel,
		mode:         cfg.Mode,
	}, nil
}

func (p *OpenAICompatProvider) Name() string { return "openai" }
func (p *OpenAICompatProvider) Mode() Mode    { return p.mode }

func (p *OpenAICompatProvider) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *OpenAICompatProvider) Chat(ctx context.Context, messages []model.Message, images []model.ImageInput, tools []registry.Definition, opts ChatOptions) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	oaiMessages := convertOpenAIMessages(messages, images)

	modelName := opts.Model
	if modelName == "" {
		modelName = p.defaultModel
	}

	req := openai.ChatCompletionRequest{
		Model:     modelName,
		Messages:  oaiMessages,
		MaxTokens: opts.MaxTokens,
	}
	if p.mode == ModeNative && len(tools) > 0 {
		req.Tools = convertOpenAITools(tools)
	}

	completion, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}
	choice := completion.Choices[0]

	resp := &Response{
		Usage: Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}

	if p.mode == ModeText {
		content, calls, perr := ParseTextToolCalls(choice.Message.Content)
		resp.Content = content
		resp.ToolCalls = calls
		resp.ParseErr = perr
		return resp, nil
	}

	resp.Content = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{}
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return resp, nil
}

func convertOpenAIMessages(messages []model.Message, images []model.ImageInput) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	lastImageable := -1
	for i, m := range messages {
		if m.Role != model.RoleAssistant {
			lastImageable = i
		}
	}

	for i, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})

		case model.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})

		case model.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				argBytes, _ := json.Marshal(tc.Arguments)
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(argBytes),
					},
				})
			}
			out = append(out, oaiMsg)

		default: // RoleUser, RoleComputer both map to OpenAI's user role
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
			if i == lastImageable && len(images) > 0 {
				var parts []openai.ChatMessagePart
				if m.Content != "" {
					parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: m.Content})
				}
				for _, img := range images {
					parts = append(parts, openai.ChatMessagePart{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageDataURL(img),
							Detail: openai.ImageURLDetailAuto,
						},
					})
				}
				oaiMsg.MultiContent = parts
			} else {
				oaiMsg.Content = m.Content
			}
			out = append(out, oaiMsg)
		}
	}
	return out
}

func imageDataURL(img model.ImageInput) string {
	if img.URL != "" {
		return img.URL
	}
	mediaType := string(img.MediaType)
	if mediaType == "" {
		mediaType = "png"
	}
	data := img.Base64
	if data == "" {
		data = base64.StdEncoding.EncodeToString(nil)
	}
	return fmt.Sprintf("data:image/%s;base64,%s", mediaType, data)
}

func convertOpenAITools(tools []registry.Definition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
