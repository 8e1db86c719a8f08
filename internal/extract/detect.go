package extract

import (
	"bytes"
	"path/filepath"

	"github.com/joseph-ayodele/medilink/constants"
)

var magicPDF = []byte("%PDF-")

// DetectFormat maps an upload onto a Format. The extension must be on the
// allow-list; a PDF signature in head overrides an image extension.
func DetectFormat(filename string, head []byte) Format {
	ext := constants.NormalizeExt(filepath.Ext(filename))
	if !constants.IsAllowedExt(ext) {
		return FormatUnknown
	}
	if bytes.HasPrefix(head, magicPDF) {
		return FormatPDF
	}
	switch ext {
	case "tif", "tiff":
		return FormatRasterPage
	}
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		return FormatPDF
	case constants.DOCX:
		return FormatStructuredDoc
	case constants.IMAGE:
		return FormatRawImage
	default:
		return FormatUnknown
	}
}
