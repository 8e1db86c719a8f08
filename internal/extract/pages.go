package extract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/medilink/internal/imaging"
)

// pageSource loads page i on demand so that only pages being worked on are
// held in memory.
type pageSource struct {
	count int
	load  func(i int) (img image.Image, original []byte, err error)
}

type pageOutcome struct {
	text       string
	provenance string
	warnings   []string
}

// recognizePages runs normalize+recognize for every page on the bounded pool.
// Output order matches page order. Cancellation is observed between pages.
func (o *Orchestrator) recognizePages(ctx context.Context, src pageSource, handwriting bool) ([]string, []string, error) {
	outcomes := make([]pageOutcome, src.count)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < src.count; i++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = failure(ReasonInternal, fmt.Sprintf("page %d aborted: %v", i+1, r), nil)
				}
			}()
			return o.pool.Do(gctx, func() error {
				img, original, err := src.load(i)
				if err != nil {
					outcomes[i].warnings = append(outcomes[i].warnings, fmt.Sprintf("page %d: %v", i+1, err))
					return nil
				}
				out, err := o.recognizePage(gctx, img, original, handwriting, true)
				if err != nil {
					return fmt.Errorf("page %d: %w", i+1, err)
				}
				outcomes[i] = out
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	pages := make([]string, src.count)
	var warnings []string
	for i, out := range outcomes {
		pages[i] = out.text
		warnings = append(warnings, out.warnings...)
	}
	return pages, warnings, nil
}

// recognizePage normalizes img and runs the recognition cascade. With retry
// set, an empty cascade is retried once with the fallback engine on the
// normalized image. A started page is not interrupted by cancellation.
func (o *Orchestrator) recognizePage(ctx context.Context, img image.Image, original []byte, handwriting, retry bool) (pageOutcome, error) {
	ctx = context.WithoutCancel(ctx)
	norm := o.normalizer.Normalize(img, handwriting)
	processed, err := imaging.EncodePNG(norm)
	if err != nil {
		return pageOutcome{}, err
	}
	if len(original) == 0 {
		if original, err = imaging.EncodePNG(img); err != nil {
			return pageOutcome{}, err
		}
	}

	rec, err := o.recognizer.Recognize(ctx, processed, original)
	if err != nil {
		return pageOutcome{}, err
	}
	out := pageOutcome{text: strings.TrimSpace(rec.Text), provenance: rec.Provenance(), warnings: rec.Warnings}
	if out.text != "" || !retry || o.fallback == nil {
		return out, nil
	}

	txt, err := o.fallback.Recognize(ctx, processed)
	if err != nil {
		out.warnings = append(out.warnings, fmt.Sprintf("fallback %s: %v", o.fallback.Name(), err))
		return out, nil
	}
	out.text = strings.TrimSpace(txt)
	if out.text != "" {
		out.provenance = "image-ocr/" + o.fallback.Name() + "/processed"
	}
	return out, nil
}
