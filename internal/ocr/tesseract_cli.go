package ocr

import (
	"context"
	"fmt"
	"os"
)

// TesseractCLI shells out to the tesseract binary. It serves as the
// general-purpose fallback engine.
type TesseractCLI struct {
	Bin         string // default "tesseract"
	Lang        string // default "eng"
	TessdataDir string
	PSM         int // 0 = engine default

	runner Runner
}

func NewTesseractCLI(bin, lang, tessdataDir string, runner Runner) *TesseractCLI {
	if bin == "" {
		bin = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	if runner == nil {
		runner = NewExecRunner(nil)
	}
	return &TesseractCLI{Bin: bin, Lang: lang, TessdataDir: tessdataDir, runner: runner}
}

func (t *TesseractCLI) Name() string { return "tesseract-cli" }

func (t *TesseractCLI) Recognize(ctx context.Context, img []byte) (string, error) {
	f, err := os.CreateTemp("", "ml-ocr-*.png")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.Write(img); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return t.RecognizeFile(ctx, f.Name())
}

// RecognizeFile runs tesseract <file> stdout -l <lang>.
func (t *TesseractCLI) RecognizeFile(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", t.Lang}
	if t.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", t.PSM))
	}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	out, errb, err := t.runner.Run(ctx, t.Bin, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}
	return Normalize(string(out)), nil
}
