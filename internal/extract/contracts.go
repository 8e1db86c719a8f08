package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/joseph-ayodele/medilink/internal/common"
)

// TextExtractor turns an uploaded document into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, doc Document) (Result, error)
}

// Format is the closed set of document layouts the orchestrator handles.
type Format int

const (
	FormatUnknown Format = iota
	FormatRasterPage
	FormatPDF
	FormatStructuredDoc
	FormatRawImage
)

func (f Format) String() string {
	switch f {
	case FormatRasterPage:
		return "raster_page"
	case FormatPDF:
		return "pdf"
	case FormatStructuredDoc:
		return "structured_doc"
	case FormatRawImage:
		return "raw_image"
	default:
		return "unknown"
	}
}

// Document is one upload. Format may be left as FormatUnknown to have it
// detected from Filename and Bytes.
type Document struct {
	Filename    string
	Bytes       []byte
	Format      Format
	Handwriting bool
}

// Result is a successful extraction. Text is never empty.
type Result struct {
	Pages      []string
	Text       string
	Provenance string // pdf-ocr | pdf-text-lib | pdf-text-cli | docx | image-ocr/<engine>/<variant>
	Format     Format
	Duration   time.Duration
	Warnings   []string
}

// Reason distinguishes why extraction produced nothing.
type Reason string

const (
	ReasonNoRenderer  Reason = "no_renderer"
	ReasonNoText      Reason = "no_text"
	ReasonUndecodable Reason = "undecodable"
	ReasonInternal    Reason = "internal"
)

// PDF failure messages, one per Reason.
const (
	pdfNoRendererMessage = "Failed to extract text from PDF. Please install poppler-utils or upload a different file format."
	pdfNoTextMessage     = "Failed to extract text from PDF. No readable text was found; please upload a clearer scan or a different file format."
	pdfUnreadableMessage = "Failed to extract text from PDF. The file is damaged or not a valid PDF."
)

// ExtractionError reports that every fallback was exhausted. It matches
// common.ErrExtractionFailure under errors.Is.
type ExtractionError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s): %s", e.Reason, e.Message)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == common.ErrExtractionFailure }

func failure(reason Reason, msg string, err error) *ExtractionError {
	return &ExtractionError{Reason: reason, Message: msg, Err: err}
}
