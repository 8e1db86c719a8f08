package extract

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/medilink/internal/common"
	"github.com/joseph-ayodele/medilink/internal/imaging"
	"github.com/joseph-ayodele/medilink/internal/ocr"
)

// extractPDF renders and OCRs the scratch copy at path, falling back to the
// text strategies. A file that fails structural validation is not handed to
// the renderer at all.
func (o *Orchestrator) extractPDF(ctx context.Context, dir, path string, doc Document) (Result, error) {
	logger := common.LoggerFrom(ctx, o.logger)

	var warnings []string
	var renderErr error
	count, inspectErr := inspectPDF(path)
	if inspectErr != nil {
		logger.Warn("extract.pdf.inspect_failed", "error", inspectErr)
		warnings = append(warnings, inspectErr.Error())
	} else {
		logger.Debug("extract.pdf.inspected", "pages", count)
		var pages, w []string
		pages, w, renderErr = o.ocrPDF(ctx, dir, path, count, doc.Handwriting)
		warnings = append(warnings, w...)
		if renderErr == nil && anyText(pages) {
			return Result{Pages: pages, Text: joinPages(pages), Provenance: "pdf-ocr", Warnings: warnings}, nil
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if renderErr != nil {
			logger.Warn("extract.pdf.render_failed", "error", renderErr)
			warnings = append(warnings, "render: "+renderErr.Error())
		}
	}

	for _, s := range o.strategies {
		pages, err := s.Pages(ctx, path)
		if err != nil {
			logger.Warn("extract.pdf.strategy_failed", "strategy", s.Name(), "error", err)
			warnings = append(warnings, s.Name()+": "+err.Error())
			continue
		}
		if anyText(pages) {
			logger.Info("extract.pdf.strategy_ok", "strategy", s.Name(), "pages", len(pages))
			return Result{Pages: pages, Text: joinPages(pages), Provenance: s.Name(), Warnings: warnings}, nil
		}
	}
	return Result{}, pdfFailure(inspectErr, renderErr)
}

// pdfFailure picks the reason and user-facing message once every path is exhausted.
func pdfFailure(inspectErr, renderErr error) *ExtractionError {
	switch {
	case inspectErr != nil:
		return failure(ReasonUndecodable, pdfUnreadableMessage, inspectErr)
	case renderErr != nil && ocr.IsMissingBinary(renderErr):
		return failure(ReasonNoRenderer, pdfNoRendererMessage, renderErr)
	default:
		return failure(ReasonNoText, pdfNoTextMessage, renderErr)
	}
}

// inspectPDF validates the file in relaxed mode and counts its pages.
func inspectPDF(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdf validation: %v", r)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, fmt.Errorf("pdf validation: %w", err)
	}
	n, err = api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("pdf validation: document has no pages")
	}
	return n, nil
}

// ocrPDF rasterizes up to count pages with pdftoppm and recognizes them in parallel.
func (o *Orchestrator) ocrPDF(ctx context.Context, dir, path string, count int, handwriting bool) ([]string, []string, error) {
	pngs, warnings, err := o.renderPages(ctx, dir, path, count)
	if err != nil {
		return nil, nil, err
	}
	src := pageSource{
		count: len(pngs),
		load: func(i int) (img image.Image, original []byte, err error) {
			data, err := os.ReadFile(pngs[i])
			if err != nil {
				return nil, nil, err
			}
			img, _, err = imaging.Decode(data)
			return img, data, err
		},
	}
	pages, w, err := o.recognizePages(ctx, src, handwriting)
	return pages, append(warnings, w...), err
}

// renderPages asks pdftoppm for pages 1..last, where last is the page count
// capped by MaxPages, and reports a partial render as a warning.
func (o *Orchestrator) renderPages(ctx context.Context, dir, path string, count int) ([]string, []string, error) {
	last := count
	if o.cfg.MaxPages > 0 && o.cfg.MaxPages < last {
		last = o.cfg.MaxPages
	}
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(o.cfg.DPI), "-png", "-f", "1", "-l", strconv.Itoa(last), path, prefix}

	// pdftoppm -r 300 -png -f 1 -l N <in.pdf> <dir/page>
	_, errb, err := o.runner.Run(ctx, o.cfg.Pdftoppm, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("pdftoppm: %w (%s)", err, truncateStderr(errb))
	}

	// page-1.png ... or page-01.png ...; the width is uniform so lexical order holds
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > last {
		matches = matches[:last]
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("pdftoppm produced no images")
	}
	var warnings []string
	if len(matches) < last {
		warnings = append(warnings, fmt.Sprintf("pdftoppm rendered %d of %d pages", len(matches), last))
	}
	return matches, warnings, nil
}

func truncateStderr(b []byte) string {
	const max = 512
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}
