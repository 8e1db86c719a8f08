package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/medilink/constants"
	"github.com/joseph-ayodele/medilink/internal/app"
	"github.com/joseph-ayodele/medilink/internal/classify"
	"github.com/joseph-ayodele/medilink/internal/common"
	"github.com/joseph-ayodele/medilink/internal/extract"
)

type summary struct {
	File       string            `json:"file"`
	Format     string            `json:"format"`
	Provenance string            `json:"provenance"`
	Pages      int               `json:"pages"`
	Chars      int               `json:"chars"`
	DocType    constants.DocType `json:"document_type"`
	Scores     classify.Score    `json:"scores"`
	Redactions map[string]int    `json:"redactions"`
	Warnings   []string          `json:"warnings,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Text       string            `json:"text,omitempty"`
}

func main() {
	var (
		hint        = flag.String("type", "auto", "document_type hint: prescription|lab_report|auto")
		handwriting = flag.Bool("handwriting", false, "prefer handwriting preprocessing for images")
		showText    = flag.Bool("text", false, "include the redacted text in the output")
		timeout     = flag.Duration("timeout", 2*time.Minute, "overall timeout")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-type auto] [-handwriting] [-text] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)
	docHint, ok := constants.ParseHint(*hint)
	if !ok {
		logger.Error("invalid -type", "value", *hint)
		os.Exit(2)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	red, err := app.NewRedactor(cfg.Redact)
	if err != nil {
		logger.Error("invalid redaction policy", "error", err)
		os.Exit(2)
	}
	ex := app.NewExtractor(cfg.OCR, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	res, err := ex.Extract(ctx, extract.Document{
		Filename:    filepath.Base(path),
		Bytes:       body,
		Handwriting: *handwriting,
	})
	if err != nil {
		logger.Error("text extraction failed", "path", path, "stage", common.Stage(err), "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	text, counts := red.Apply(res.Text)
	out := summary{
		File:       path,
		Format:     res.Format.String(),
		Provenance: res.Provenance,
		Pages:      len(res.Pages),
		Chars:      len(text),
		DocType:    classify.ResolveType(docHint, text),
		Scores:     classify.Classify(text),
		Redactions: map[string]int{},
		Warnings:   res.Warnings,
		DurationMS: time.Since(start).Milliseconds(),
	}
	for k, n := range counts {
		out.Redactions[string(k)] = n
	}
	if *showText {
		out.Text = text
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
