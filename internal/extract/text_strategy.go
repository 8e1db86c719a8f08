package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/medilink/internal/ocr"
)

// TextStrategy reads a PDF's embedded text layer, one string per page.
type TextStrategy interface {
	Name() string
	Pages(ctx context.Context, path string) ([]string, error)
}

// LibTextStrategy reads the text layer in process.
type LibTextStrategy struct {
	MaxPages int
}

func NewLibTextStrategy(maxPages int) LibTextStrategy {
	return LibTextStrategy{MaxPages: maxPages}
}

func (LibTextStrategy) Name() string { return "pdf-text-lib" }

// Pages recovers from parser panics on malformed files.
func (s LibTextStrategy) Pages(ctx context.Context, path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf parser: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	if s.MaxPages > 0 && n > s.MaxPages {
		n = s.MaxPages
	}
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(txt))
	}
	return pages, nil
}

// CLITextStrategy shells out to pdftotext.
type CLITextStrategy struct {
	Bin      string
	MaxPages int
	runner   ocr.Runner
}

func NewCLITextStrategy(bin string, maxPages int, runner ocr.Runner) CLITextStrategy {
	if bin == "" {
		bin = "pdftotext"
	}
	return CLITextStrategy{Bin: bin, MaxPages: maxPages, runner: runner}
}

func (CLITextStrategy) Name() string { return "pdf-text-cli" }

func (s CLITextStrategy) Pages(ctx context.Context, path string) ([]string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if s.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(s.MaxPages))
	}
	args = append(args, path, "-")
	out, errb, err := s.runner.Run(ctx, s.Bin, args...)
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w (%s)", err, truncateStderr(errb))
	}
	// form feeds separate pages; one trails the last page
	raw := strings.Split(strings.TrimSuffix(string(out), "\f"), "\f")
	pages := make([]string, len(raw))
	for i, p := range raw {
		pages[i] = ocr.Normalize(p)
	}
	return pages, nil
}
