// Package extract turns uploaded documents into plain text, choosing a
// handler per format and falling back through OCR and text-layer strategies.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/medilink/constants"
	"github.com/joseph-ayodele/medilink/internal/async"
	"github.com/joseph-ayodele/medilink/internal/common"
	"github.com/joseph-ayodele/medilink/internal/imaging"
	"github.com/joseph-ayodele/medilink/internal/ocr"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	DPI       int    // rasterization DPI for PDFs, default 300
	MaxPages  int    // 0 = no limit

	ScratchDir string // parent of per-call temp dirs; "" = os.TempDir()
}

// Deps are the collaborators an Orchestrator needs. Fallback is the engine
// retried on a page whose cascade came back empty; it may be nil.
type Deps struct {
	Normalizer *imaging.Normalizer
	Recognizer *ocr.Recognizer
	Fallback   ocr.Engine
	Pool       *async.Pool
	Runner     ocr.Runner

	// TextStrategies run in order when PDF rendering yields nothing.
	// Nil selects the default library-then-pdftotext chain.
	TextStrategies []TextStrategy
}

type Orchestrator struct {
	cfg        Config
	normalizer *imaging.Normalizer
	recognizer *ocr.Recognizer
	fallback   ocr.Engine
	pool       *async.Pool
	runner     ocr.Runner
	strategies []TextStrategy
	logger     *slog.Logger
}

func NewOrchestrator(cfg Config, deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if deps.Normalizer == nil {
		deps.Normalizer = imaging.NewNormalizer(logger)
	}
	if deps.Pool == nil {
		deps.Pool = async.NewPool(0)
	}
	if deps.Runner == nil {
		deps.Runner = ocr.NewExecRunner(logger)
	}
	if deps.Recognizer == nil {
		deps.Recognizer = ocr.NewRecognizer(
			ocr.NewGosseractEngine("", ""),
			ocr.NewTesseractCLI("", "", "", deps.Runner),
			logger,
		)
	}
	if deps.TextStrategies == nil {
		deps.TextStrategies = []TextStrategy{
			NewLibTextStrategy(cfg.MaxPages),
			NewCLITextStrategy(cfg.Pdftotext, cfg.MaxPages, deps.Runner),
		}
	}
	return &Orchestrator{
		cfg:        cfg,
		normalizer: deps.Normalizer,
		recognizer: deps.Recognizer,
		fallback:   deps.Fallback,
		pool:       deps.Pool,
		runner:     deps.Runner,
		strategies: deps.TextStrategies,
		logger:     logger,
	}
}

// Extract dispatches doc to its format handler. Every call copies the upload
// into its own scratch directory, removed on every exit path including panics.
// PDF and DOCX handlers read the copy; image handlers decode the bytes
// already in memory.
func (o *Orchestrator) Extract(ctx context.Context, doc Document) (res Result, err error) {
	start := time.Now()
	logger := common.LoggerFrom(ctx, o.logger)

	if doc.Format == FormatUnknown {
		doc.Format = DetectFormat(doc.Filename, doc.Bytes)
	}
	if doc.Format == FormatUnknown {
		logger.Warn("extract.unsupported", "filename", doc.Filename)
		return Result{}, common.NewAppError("UNSUPPORTED_FORMAT",
			"Unsupported file format. Please upload an image, PDF, or DOCX file.",
			fmt.Errorf("%q: %w", filepath.Ext(doc.Filename), common.ErrUnsupportedFormat))
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	dir, err := os.MkdirTemp(o.cfg.ScratchDir, "ml-extract-*")
	if err != nil {
		return Result{}, fmt.Errorf("scratch dir: %w", err)
	}
	defer func(path string) {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			logger.Warn("failed to remove scratch dir", "path", path, "error", rmErr)
		}
	}(dir)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("extract.panic", "filename", doc.Filename, "format", doc.Format.String(), "panic", r)
			res, err = Result{}, failure(ReasonInternal, fmt.Sprintf("extraction aborted: %v", r), nil)
		}
	}()

	logger.Debug("extract.start", "filename", doc.Filename, "format", doc.Format.String(), "bytes", len(doc.Bytes))

	path := scratchPath(dir, doc.Filename)
	if err := os.WriteFile(path, doc.Bytes, 0o600); err != nil {
		return Result{}, fmt.Errorf("write scratch copy: %w", err)
	}

	switch doc.Format {
	case FormatPDF:
		res, err = o.extractPDF(ctx, dir, path, doc)
	case FormatRasterPage:
		res, err = o.extractRaster(ctx, doc)
	case FormatStructuredDoc:
		res, err = o.extractDOCX(path)
	case FormatRawImage:
		res, err = o.extractImage(ctx, doc)
	default:
		return Result{}, fmt.Errorf("format %s: %w", doc.Format, common.ErrUnsupportedFormat)
	}
	if err != nil {
		logger.Error("extract.failed",
			"filename", doc.Filename,
			"format", doc.Format.String(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return Result{}, err
	}

	res.Format = doc.Format
	res.Duration = time.Since(start)
	logger.Info("extract.ok",
		"filename", doc.Filename,
		"format", doc.Format.String(),
		"provenance", res.Provenance,
		"pages", len(res.Pages),
		"text_len", len(res.Text),
		"warnings", len(res.Warnings),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// scratchPath names the copy of the upload inside dir.
func scratchPath(dir, filename string) string {
	ext := constants.NormalizeExt(filepath.Ext(filename))
	if ext == "" {
		return filepath.Join(dir, "input")
	}
	return filepath.Join(dir, "input."+ext)
}

// joinPages renders pages as "[Page N]: text" blocks separated by a blank line.
func joinPages(pages []string) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("[Page %d]: %s", i+1, p)
	}
	return strings.Join(parts, "\n\n")
}

func anyText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
