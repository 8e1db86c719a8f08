// Package analysis runs an upload through extraction, redaction,
// classification and the completion service, and answers follow-up
// questions against the resulting session.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/medilink/constants"
	"github.com/joseph-ayodele/medilink/internal/classify"
	"github.com/joseph-ayodele/medilink/internal/common"
	"github.com/joseph-ayodele/medilink/internal/extract"
	"github.com/joseph-ayodele/medilink/internal/llm"
	"github.com/joseph-ayodele/medilink/internal/redact"
	"github.com/joseph-ayodele/medilink/internal/session"
)

// MinTextLen is the shortest trimmed extraction accepted for analysis.
const MinTextLen = 10

const insufficientTextMessage = "Could not extract sufficient text from the file. Please try a clearer image or document."

// Config holds behavior flags for the pipeline.
type Config struct {
	// CompactHistory stores the windowed log after each chat turn instead of
	// the full history. Defaults to true.
	CompactHistory *bool
}

func (c Config) compact() bool {
	return c.CompactHistory == nil || *c.CompactHistory
}

// Upload is one document submitted for analysis.
type Upload struct {
	Filename    string
	Bytes       []byte
	Hint        constants.DocType // prescription | lab_report | auto
	Handwriting bool
}

// Outcome is what a successful analysis hands back to the caller.
type Outcome struct {
	SessionID  string
	DocType    constants.DocType
	Text       string // redacted
	Analysis   string
	Structured json.RawMessage
	Provenance string
	Pages      int
	Recovery   llm.Method
	SchemaOK   bool
	Warnings   []string
}

// Service coordinates extraction, redaction, classification, completion and
// session storage.
type Service struct {
	Logger    *slog.Logger
	Cfg       Config
	Extractor extract.TextExtractor
	Redactor  *redact.Redactor
	LLM       llm.Completer
	Sessions  *session.Manager
}

func NewService(logger *slog.Logger, cfg Config, ex extract.TextExtractor, r *redact.Redactor, c llm.Completer, sessions *session.Manager) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = redact.New(redact.AddressStrict)
	}
	return &Service{
		Logger:    logger,
		Cfg:       cfg,
		Extractor: ex,
		Redactor:  r,
		LLM:       c,
		Sessions:  sessions,
	}
}

// Analyze extracts, redacts and classifies the upload, asks the completion
// service for an analysis and opens a session around the result.
func (s *Service) Analyze(ctx context.Context, up Upload) (*Outcome, error) {
	logger := common.LoggerFrom(ctx, s.Logger)
	start := time.Now()

	if !constants.IsAllowedExt(filepath.Ext(up.Filename)) {
		return nil, common.NewAppError("UNSUPPORTED_FORMAT",
			"Unsupported file format. Please upload an image, PDF, or DOCX file.",
			fmt.Errorf("%q: %w", filepath.Ext(up.Filename), common.ErrUnsupportedFormat))
	}
	hint := up.Hint
	if hint == "" {
		hint = constants.DocLabReport
	}

	res, err := s.Extractor.Extract(ctx, extract.Document{
		Filename:    up.Filename,
		Bytes:       up.Bytes,
		Handwriting: up.Handwriting,
	})
	if err != nil {
		var ee *extract.ExtractionError
		if errors.As(err, &ee) {
			return nil, common.NewAppError("EXTRACTION_FAILED", "Error processing document: "+ee.Message, err)
		}
		return nil, err
	}
	if len(strings.TrimSpace(res.Text)) < MinTextLen {
		logger.Warn("analysis.insufficient_text", "filename", up.Filename, "text_len", len(res.Text))
		return nil, common.NewAppError("INSUFFICIENT_TEXT", insufficientTextMessage, common.ErrInsufficientText)
	}

	text, counts := s.Redactor.Apply(res.Text)
	docType := classify.ResolveType(hint, text)
	logger.Info("analysis.classified",
		"filename", up.Filename,
		"hint", hint,
		"document_type", docType,
		"redactions", counts,
	)

	msgs, sampling := llm.AnalysisPrompt(docType, text)
	completion, err := s.LLM.Complete(ctx, llm.CompletionRequest{Messages: msgs, Sampling: sampling})
	if err != nil {
		return nil, common.NewAppError("UPSTREAM", "Error processing document: "+err.Error(), err)
	}

	out := &Outcome{
		DocType:    docType,
		Text:       text,
		Analysis:   completion.Content,
		Provenance: res.Provenance,
		Pages:      len(res.Pages),
		Warnings:   res.Warnings,
	}
	if v, ok := llm.ValidatorFor(docType); ok {
		out.Structured, out.Recovery, out.SchemaOK = s.structure(logger, v, completion.Content)
	}

	id, err := s.Sessions.Create(ctx, session.Seed{
		Text:         text,
		DocType:      docType,
		Structured:   out.Structured,
		SystemPrompt: msgs[0].Content,
		Analysis:     completion.Content,
	})
	if err != nil {
		return nil, common.NewAppError("SESSION_STORE", "Error processing document: "+err.Error(), err)
	}
	out.SessionID = id

	logger.Info("analysis.ok",
		"session_id", id,
		"document_type", docType,
		"provenance", res.Provenance,
		"structured", len(out.Structured) > 0,
		"schema_ok", out.SchemaOK,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// structure recovers a JSON payload from the reply and checks it against the
// schema. A payload that does not match is kept and the mismatch logged.
func (s *Service) structure(logger *slog.Logger, v *llm.Validator, content string) (json.RawMessage, llm.Method, bool) {
	raw, method, ok := llm.RecoverJSON(content)
	if !ok {
		logger.Warn("analysis.structured.unrecoverable", "content_len", len(content))
		return nil, llm.MethodNone, false
	}
	if err := v.Validate(raw); err == nil {
		return raw, method, true
	}
	cleaned, dropped, err := llm.SanitizeOptionalFields(raw, v.Schema, logger)
	if err != nil {
		return raw, method, false
	}
	if err := v.Validate(cleaned); err != nil {
		logger.Warn("analysis.structured.schema_mismatch", "method", method, "error", err)
		return cleaned, method, false
	}
	logger.Debug("analysis.structured.sanitized", "method", method, "dropped", dropped)
	return cleaned, llm.MethodLenient, true
}

// Chat answers a follow-up question about the document behind sessionID.
// The exchange is written back only when the completion succeeds.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (string, error) {
	ctx = common.WithSessionID(ctx, sessionID)
	logger := common.LoggerFrom(ctx, s.Logger)

	var reply string
	err := s.Sessions.Update(ctx, sessionID, func(sess *session.Session) error {
		if strings.TrimSpace(message) == "" {
			return common.NewAppError("EMPTY_MESSAGE", "Message cannot be empty", common.ErrEmptyMessage)
		}

		window := session.BuildWindow(sess)
		user := session.Message{Role: session.RoleUser, Content: llm.ChatUserContent(message)}
		req := llm.CompletionRequest{
			Messages: toLLM(append(window, user)),
			Sampling: llm.ChatSamplingFor(sess.DocType, message),
		}
		completion, err := s.LLM.Complete(ctx, req)
		if err != nil {
			return common.NewAppError("UPSTREAM", "Error from AI service: "+err.Error(), err)
		}
		reply = completion.Content

		assistant := session.Message{Role: session.RoleAssistant, Content: reply}
		if s.Cfg.compact() {
			sess.Log = append(window, user, assistant)
		} else {
			sess.Log = append(sess.Log, user, assistant)
		}
		logger.Info("analysis.chat.ok",
			"window_len", len(window),
			"log_len", len(sess.Log),
			"json_mode", req.JSONMode,
		)
		return nil
	})
	if err != nil {
		logger.Warn("analysis.chat.failed", "stage", common.Stage(err), "error", err)
		return "", err
	}
	return reply, nil
}

func toLLM(msgs []session.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}
