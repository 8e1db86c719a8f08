// Package app assembles the pipeline from a loaded configuration so the
// binaries share one wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/medilink/internal/analysis"
	"github.com/joseph-ayodele/medilink/internal/async"
	"github.com/joseph-ayodele/medilink/internal/common"
	"github.com/joseph-ayodele/medilink/internal/extract"
	"github.com/joseph-ayodele/medilink/internal/imaging"
	"github.com/joseph-ayodele/medilink/internal/llm/groq"
	"github.com/joseph-ayodele/medilink/internal/ocr"
	"github.com/joseph-ayodele/medilink/internal/redact"
	"github.com/joseph-ayodele/medilink/internal/session"
)

// fallbackPSM treats a page as one uniform block of text.
const fallbackPSM = 6

// NewExtractor builds the extraction orchestrator and its OCR engines.
func NewExtractor(cfg common.OCRConfig, logger *slog.Logger) *extract.Orchestrator {
	runner := ocr.NewExecRunner(logger)
	primary := ocr.NewGosseractEngine(cfg.Lang, cfg.TessdataDir)
	secondary := ocr.NewTesseractCLI(cfg.Tesseract, cfg.Lang, cfg.TessdataDir, runner)
	fallback := ocr.NewTesseractCLI(cfg.Tesseract, cfg.Lang, cfg.TessdataDir, runner)
	fallback.PSM = fallbackPSM

	return extract.NewOrchestrator(extract.Config{
		Pdftoppm:  cfg.Pdftoppm,
		Pdftotext: cfg.Pdftotext,
		DPI:       cfg.DPI,
		MaxPages:  cfg.MaxPages,
	}, extract.Deps{
		Normalizer: NewNormalizer(cfg, logger),
		Recognizer: ocr.NewRecognizer(primary, secondary, logger),
		Fallback:   fallback,
		Pool:       async.NewPool(cfg.Workers),
		Runner:     runner,
	}, logger)
}

// NewNormalizer applies the configured denoise overrides to the default normalizer.
func NewNormalizer(cfg common.OCRConfig, logger *slog.Logger) *imaging.Normalizer {
	n := imaging.NewNormalizer(logger)
	if cfg.DenoiseH > 0 {
		n.DenoiseH = cfg.DenoiseH
	}
	if cfg.DenoiseTemplate > 0 {
		n.DenoiseTemplate = cfg.DenoiseTemplate
	}
	if cfg.DenoiseSearch > 0 {
		n.DenoiseSearch = cfg.DenoiseSearch
	}
	return n
}

// NewRedactor maps the configured address policy onto a Redactor.
func NewRedactor(cfg common.RedactConfig) (*redact.Redactor, error) {
	policy, err := redact.ParseAddressPolicy(cfg.AddressPolicy)
	if err != nil {
		return nil, err
	}
	return redact.New(policy), nil
}

// NewSessions opens the configured session store. The returned closer
// releases any connection it holds.
func NewSessions(ctx context.Context, cfg common.SessionConfig, logger *slog.Logger) (*session.Manager, func() error, error) {
	switch cfg.Backend {
	case "", "memory":
		store := session.NewMemoryStore(cfg.TTL,
			session.WithMaxEntries(cfg.MaxEntries),
			session.WithMemoryLogger(logger),
		)
		return session.NewManager(store, logger), func() error { return nil }, nil
	case "redis":
		store, err := session.OpenRedisStore(ctx, cfg.RedisURL, cfg.TTL, cfg.KeyPrefix, logger)
		if err != nil {
			return nil, nil, err
		}
		return session.NewManager(store, logger), store.Close, nil
	default:
		return nil, nil, common.NewAppError("CONFIG_ERROR",
			fmt.Sprintf("unknown session backend %q", cfg.Backend), common.ErrInvalidInput)
	}
}

// Pipeline is the assembled analysis service plus what it owns.
type Pipeline struct {
	Analysis  *analysis.Service
	Extractor *extract.Orchestrator
	Redactor  *redact.Redactor
	LLM       *groq.Client

	closers []func() error
}

// NewPipeline builds every collaborator of analysis.Service from cfg.
func NewPipeline(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	red, err := NewRedactor(cfg.Redact)
	if err != nil {
		return nil, err
	}
	sessions, closeSessions, err := NewSessions(ctx, cfg.Session, logger)
	if err != nil {
		return nil, fmt.Errorf("open sessions: %w", err)
	}
	ex := NewExtractor(cfg.OCR, logger)
	client := groq.NewClient(groq.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	logger.Info("app.pipeline.ready",
		"session_backend", cfg.Session.Backend,
		"model", client.Model(),
		"ocr_workers", cfg.OCR.Workers,
		"address_policy", cfg.Redact.AddressPolicy,
	)
	return &Pipeline{
		Analysis:  analysis.NewService(logger, analysis.Config{}, ex, red, client, sessions),
		Extractor: ex,
		Redactor:  red,
		LLM:       client,
		closers:   []func() error{closeSessions},
	}, nil
}

// Close releases the session store.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
