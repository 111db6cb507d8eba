// Package llmprovider implements a uniform multimodal, tool-aware chat
// contract with two tool-call modes (native and text) and the
// system/user/assistant/tool/computer role mapping every concrete provider
// must honor.
package llmprovider

import (
	"context"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
)

// Mode selects how a provider surfaces tool calls.
type Mode string

const (
	// ModeNative sends tools through the provider's own function-call channel.
	ModeNative Mode = "native"
	// ModeText expects <Thought>/<Action> or a bare JSON array in the reply text.
	ModeText Mode = "text"
)

// ChatOptions are per-call knobs that do not belong in the message history.
type ChatOptions struct {
	Model     string
	MaxTokens int
}

// ParseError describes a text-mode response the provider could not parse
// into tool calls. The loop turns this into an injected error notice rather
// than crashing.
type ParseError struct {
	Message string
	Raw     string
}

func (e *ParseError) Error() string { return e.Message }

// Usage reports token accounting for one Chat call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the provider's reply to one Chat call.
type Response struct {
	Content   string
	ToolCalls []model.ToolCall
	ParseErr  *ParseError
	Usage     Usage
}

// Provider is the uniform LLM chat contract every backend implements.
type Provider interface {
	// Chat sends the full message history plus the most recent observation's
	// images and the tool catalogue, and returns the assistant's reply.
	Chat(ctx context.Context, messages []model.Message, images []model.ImageInput, tools []registry.Definition, opts ChatOptions) (*Response, error)

	// Abort cancels the current in-flight Chat call, if any. Valid only for
	// the request in flight; a later Chat call gets a fresh cancellation.
	Abort()

	// Mode reports whether this provider surfaces tools natively or via text.
	Mode() Mode

	// Name identifies the provider for logging/config.
	Name() string
}
