package constants

import "strings"

const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	DOCX  = "DOCX"
)

// AllowedExtensions holds the upload allow-list (lowercase, without '.').
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"pdf":  {},
	"docx": {},
	"bmp":  {},
	"tiff": {},
	"tif":  {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without dot) is accepted for upload.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MapExtToFormat returns the coarse source kind for an extension, or "" when unknown.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "docx":
		return DOCX
	case "jpg", "jpeg", "png", "bmp", "tiff", "tif", "webp":
		return IMAGE
	default:
		return ""
	}
}
