// Package ocr wraps text-recognition engines behind one interface and runs
// them as an ordered cascade.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Engine recognizes text in an encoded raster image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img []byte) (string, error)
}

// Variant names which copy of the page an attempt reads.
type Variant string

const (
	VariantProcessed Variant = "processed"
	VariantOriginal  Variant = "original"
)

// Attempt is one step of the recognition cascade.
type Attempt struct {
	Engine  Engine
	Variant Variant
}

// Recognition is the cascade outcome. Text is empty when no attempt found any.
type Recognition struct {
	Text     string
	Engine   string
	Variant  Variant
	Attempts int
	Warnings []string
	Duration time.Duration
}

// Provenance tags the winning attempt, e.g. "image-ocr/gosseract/processed".
func (r Recognition) Provenance() string {
	if r.Engine == "" {
		return "image-ocr"
	}
	return fmt.Sprintf("image-ocr/%s/%s", r.Engine, r.Variant)
}

// Recognizer evaluates attempts in order and returns the first non-blank text.
type Recognizer struct {
	attempts []Attempt
	logger   *slog.Logger
}

// NewRecognizer builds the standard cascade: primary on the processed and
// original images, then secondary on both. A nil secondary is skipped.
func NewRecognizer(primary, secondary Engine, logger *slog.Logger) *Recognizer {
	var attempts []Attempt
	for _, e := range []Engine{primary, secondary} {
		if e == nil {
			continue
		}
		attempts = append(attempts,
			Attempt{Engine: e, Variant: VariantProcessed},
			Attempt{Engine: e, Variant: VariantOriginal},
		)
	}
	return NewRecognizerWithAttempts(attempts, logger)
}

func NewRecognizerWithAttempts(attempts []Attempt, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{attempts: attempts, logger: logger}
}

// Recognize runs the cascade. Engine errors become warnings and the cascade
// moves on; an all-empty cascade returns an empty Recognition and no error.
// A nil image skips the attempts that would read it. Once started, the
// cascade runs to completion: engines never see ctx cancellation.
func (r *Recognizer) Recognize(ctx context.Context, processed, original []byte) (Recognition, error) {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)
	var rec Recognition
	for _, a := range r.attempts {
		img := processed
		if a.Variant == VariantOriginal {
			img = original
		}
		if len(img) == 0 {
			continue
		}
		rec.Attempts++
		txt, err := a.Engine.Recognize(ctx, img)
		if err != nil {
			r.logger.Warn("ocr.attempt.failed", "engine", a.Engine.Name(), "variant", a.Variant, "error", err)
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("%s/%s: %v", a.Engine.Name(), a.Variant, err))
			continue
		}
		if strings.TrimSpace(txt) == "" {
			r.logger.Debug("ocr.attempt.empty", "engine", a.Engine.Name(), "variant", a.Variant)
			continue
		}
		rec.Text = txt
		rec.Engine = a.Engine.Name()
		rec.Variant = a.Variant
		break
	}
	rec.Duration = time.Since(start)
	r.logger.Debug("ocr.recognize.done",
		"engine", rec.Engine,
		"variant", rec.Variant,
		"attempts", rec.Attempts,
		"text_len", len(rec.Text),
		"duration_ms", rec.Duration.Milliseconds(),
	)
	return rec, nil
}
