package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/medilink/internal/common"
	"github.com/joseph-ayodele/medilink/internal/llm"
)

type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []llm.Message   `json:"messages"`
	Temperature         float64         `json:"temperature"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	TopP                float64         `json:"top_p,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      llm.Message `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Client calls the Groq chat-completions API.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

var _ llm.Completer = (*Client)(nil)

// NewClient builds a Client, defaulting unset config fields.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg.withDefaults(), logger: logger}
}

// Model reports the model requests are sent to.
func (c *Client) Model() string { return c.cfg.Model }

// Complete sends one chat completion and returns the first choice. Any
// transport failure, non-2xx status or empty choice list wraps ErrUpstream.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	logger := common.LoggerFrom(ctx, c.logger)
	start := time.Now()

	body := chatRequest{
		Model:               c.cfg.Model,
		Messages:            req.Messages,
		Temperature:         req.Temperature,
		MaxCompletionTokens: req.MaxTokens,
		TopP:                req.TopP,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	logger.Info("llm.complete.start",
		"model", c.cfg.Model,
		"messages", len(req.Messages),
		"json_mode", req.JSONMode,
		"temperature", req.Temperature,
	)

	ctx, cancel := common.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.cfg.HTTPClient, c.cfg.BaseURL+"/chat/completions", body, headers, logger)
	if err != nil {
		if status != 0 {
			err = fmt.Errorf("%w: %s", err, upstreamMessage(raw))
		}
		logger.Error("llm.complete.failed", "status", status, "error", err)
		return llm.Completion{}, fmt.Errorf("groq: %w: %w", common.ErrUpstream, err)
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		logger.Error("llm.complete.decode_error", "error", err)
		return llm.Completion{}, fmt.Errorf("groq: decode response: %w: %w", common.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		logger.Error("llm.complete.no_choices", "status", status)
		return llm.Completion{}, fmt.Errorf("groq: no choices in response: %w", common.ErrUpstream)
	}

	choice := resp.Choices[0]
	out := llm.Completion{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: choice.FinishReason,
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	logger.Info("llm.complete.ok",
		"model", out.Model,
		"finish_reason", out.FinishReason,
		"prompt_tokens", out.PromptTokens,
		"output_tokens", out.OutputTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func upstreamMessage(raw []byte) string {
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err == nil && resp.Error != nil && resp.Error.Message != "" {
		return resp.Error.Message
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}
