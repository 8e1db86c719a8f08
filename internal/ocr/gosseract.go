package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// GosseractEngine runs libtesseract in process. Regions are read at
// paragraph granularity and joined with single spaces in engine order.
type GosseractEngine struct {
	Lang        string
	TessdataDir string

	clientFactory func() *gosseract.Client
}

func NewGosseractEngine(lang, tessdataDir string) *GosseractEngine {
	if lang == "" {
		lang = "eng"
	}
	return &GosseractEngine{Lang: lang, TessdataDir: tessdataDir, clientFactory: gosseract.NewClient}
}

func (e *GosseractEngine) Name() string { return "gosseract" }

// Recognize uses a fresh client per call; clients are not safe for concurrent use.
func (e *GosseractEngine) Recognize(ctx context.Context, img []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := e.clientFactory()
	defer c.Close()

	if e.TessdataDir != "" {
		c.SetTessdataPrefix(e.TessdataDir)
	}
	if err := c.SetLanguage(e.Lang); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if err := c.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_PARA)
	if err != nil {
		return "", fmt.Errorf("recognize paragraphs: %w", err)
	}
	parts := make([]string, 0, len(boxes))
	for _, b := range boxes {
		if w := strings.TrimSpace(b.Word); w != "" {
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, " "), nil
}
