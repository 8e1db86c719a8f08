package extract

import (
	"context"
	"fmt"
	"image"

	"github.com/joseph-ayodele/medilink/internal/imaging"
)

func (o *Orchestrator) extractImage(ctx context.Context, doc Document) (Result, error) {
	if len(doc.Bytes) == 0 {
		return Result{}, failure(ReasonNoText, "The uploaded image is empty.", nil)
	}
	img, _, err := imaging.Decode(doc.Bytes)
	if err != nil {
		return Result{}, failure(ReasonUndecodable, "The uploaded image could not be decoded.", err)
	}

	var out pageOutcome
	err = o.pool.Do(ctx, func() error {
		var rerr error
		out, rerr = o.recognizePage(ctx, img, doc.Bytes, doc.Handwriting, false)
		return rerr
	})
	if err != nil {
		return Result{}, err
	}
	if out.text == "" {
		return Result{}, failure(ReasonNoText, "No text could be recognized in the image.", nil)
	}
	return Result{
		Pages:      []string{out.text},
		Text:       out.text,
		Provenance: out.provenance,
		Warnings:   out.warnings,
	}, nil
}

// extractRaster handles multi-frame TIFF scans, one page per frame.
func (o *Orchestrator) extractRaster(ctx context.Context, doc Document) (Result, error) {
	frames, err := imaging.DecodeTIFFFrames(doc.Bytes)
	if err != nil {
		return Result{}, failure(ReasonUndecodable, "The uploaded TIFF could not be decoded.", err)
	}
	if o.cfg.MaxPages > 0 && len(frames) > o.cfg.MaxPages {
		frames = frames[:o.cfg.MaxPages]
	}

	src := pageSource{
		count: len(frames),
		load: func(i int) (image.Image, []byte, error) {
			if len(frames) == 1 {
				return frames[i], doc.Bytes, nil
			}
			return frames[i], nil, nil
		},
	}
	pages, warnings, err := o.recognizePages(ctx, src, doc.Handwriting)
	if err != nil {
		return Result{}, err
	}
	if !anyText(pages) {
		return Result{}, failure(ReasonNoText, fmt.Sprintf("No text could be recognized in %d TIFF page(s).", len(frames)), nil)
	}
	if len(pages) == 1 {
		return Result{Pages: pages, Text: pages[0], Provenance: "image-ocr", Warnings: warnings}, nil
	}
	return Result{Pages: pages, Text: joinPages(pages), Provenance: "image-ocr", Warnings: warnings}, nil
}
