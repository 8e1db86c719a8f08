package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn as sent to the completion service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sampling holds generation parameters.
type Sampling struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
	JSONMode    bool
}

// CompletionRequest is a provider-neutral chat completion call.
type CompletionRequest struct {
	Messages []Message
	Sampling
}

// Completion is the first choice of a completion response.
type Completion struct {
	Content      string
	Model        string
	FinishReason string
	PromptTokens int
	OutputTokens int
}

// Completer is the completion service the pipeline depends on.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// Sampling presets.
var (
	// StructuredSampling is used for schema-guided extraction.
	StructuredSampling = Sampling{Temperature: 0.1, MaxTokens: 2048, TopP: 1, JSONMode: true}
	// FreeformSampling is used for documents without a schema.
	FreeformSampling = Sampling{Temperature: 0.5, MaxTokens: 1024, TopP: 1}
	// ChatSampling is used for follow-up questions.
	ChatSampling = Sampling{Temperature: 0.7, MaxTokens: 1024, TopP: 1}
	// ChatStructuredSampling is used for follow-ups that ask for a listing.
	ChatStructuredSampling = Sampling{Temperature: 0.5, MaxTokens: 1024, TopP: 1, JSONMode: true}
)
