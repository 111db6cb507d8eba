// Package model defines the data types shared across the agent core:
// conversation messages, tool calls/results, the inbound/outbound queue
// entries, accessibility snapshots/diffs, and step audit records.
package model

import "time"

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	// RoleComputer carries synthetic observation feedback the core injects
	// each step. It is distinct from RoleUser so providers can render it
	// with a "computer feedback" marker instead of as human input.
	RoleComputer Role = "computer"
)

// ImageMediaType enumerates the image encodings a provider may receive.
type ImageMediaType string

const (
	MediaPNG  ImageMediaType = "png"
	MediaJPEG ImageMediaType = "jpeg"
	MediaWebP ImageMediaType = "webp"
	MediaGIF  ImageMediaType = "gif"
)

// ImageInput is a single image attachment. Exactly one Message per step may
// carry a non-empty Images list (the most recent computer-feedback message).
type ImageInput struct {
	Path      string         `json:"path,omitempty"`
	Base64    string         `json:"base64,omitempty"`
	URL       string         `json:"url,omitempty"`
	MediaType ImageMediaType `json:"mediaType"`
	Label     string         `json:"label,omitempty"`
}

// ToolCall is a single tool invocation requested by the assistant.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of executing a ToolCall. Success is advisory:
// the agent core treats observable evidence (accessibility diff, next
// screenshot) as the authoritative signal, never this field alone.
type ToolResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Message is the tagged-variant conversation entry the core and the LLM
// provider exchange. Only one of Content/ToolCalls/ToolCallID is
// meaningful depending on Role.
type Message struct {
	Role      Role         `json:"role"`
	Content   string       `json:"content,omitempty"`
	ToolCalls []ToolCall   `json:"toolCalls,omitempty"`
	// ToolCallID correlates a RoleTool message back to the ToolCall.ID it answers.
	ToolCallID string       `json:"toolCallId,omitempty"`
	Images     []ImageInput `json:"images,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// InboundSource enumerates where a QueuedMessage originated.
type InboundSource string

const (
	SourceTUI          InboundSource = "tui"
	SourceGUI          InboundSource = "gui"
	SourceMail         InboundSource = "mail"
	SourceNotification InboundSource = "notification"
	SourceTerminal     InboundSource = "terminal"
)

// QueuedState is the lifecycle stage of a QueuedMessage.
type QueuedState string

const (
	StatePending    QueuedState = "pending"
	StateProcessing QueuedState = "processing"
	StateConsumed   QueuedState = "consumed"
)

// QueuedMessage is a single inbound item. Insertion-ordered per source;
// sources are not serialised separately from one another.
type QueuedMessage struct {
	ID        string        `json:"id"`
	Source    InboundSource `json:"source"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	State     QueuedState   `json:"state"`
}

// OutboundTarget enumerates where an OutboundMessage is addressed.
type OutboundTarget string

const (
	TargetTUI  OutboundTarget = "tui"
	TargetGUI  OutboundTarget = "gui"
	TargetMail OutboundTarget = "mail"
)

// OutboundMail carries the mail-specific envelope fields.
type OutboundMail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// OutboundMessage is a durable reply-router entry. It survives a restart
// and is removed only after successful delivery or after exhausting the
// configured maximum attempts.
type OutboundMessage struct {
	ID            string         `json:"id"`
	Target        OutboundTarget `json:"target"`
	Content       string         `json:"content"`
	Mail          *OutboundMail  `json:"mail,omitempty"`
	Attachments   []string       `json:"attachments,omitempty"`
	Attempts      int            `json:"attempts"`
	NextAttemptAt time.Time      `json:"nextAttemptAt"`
	CreatedAt     time.Time      `json:"createdAt"`
}
