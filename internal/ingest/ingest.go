// Package ingest finds medical documents on the local filesystem, either by
// walking a directory once or by watching it for new files.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/medilink/constants"
)

// File is one document found on disk.
type File struct {
	Path    string
	Ext     string
	Format  string // constants.PDF | IMAGE | DOCX
	HashHex string
	Size    int64
	// Duplicate is set when an earlier file in the same scan had the same content.
	Duplicate bool
	Err       string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned    uint32
	Matched    uint32
	Succeeded  uint32
	Duplicates uint32
	Failed     uint32
}

// Allowed reports whether path has an accepted document extension. A nil
// exts falls back to constants.AllowedExtensions.
func Allowed(path string, exts map[string]struct{}) bool {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if ext == "" {
		return false
	}
	if exts == nil {
		return constants.IsAllowedExt(ext)
	}
	_, ok := exts[ext]
	return ok
}

// ExtSet builds an extension set from a list such as "pdf,.PNG". Entries not
// in the upload allow-list are ignored; an empty result is nil.
func ExtSet(list []string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, e := range list {
		e = constants.NormalizeExt(strings.TrimSpace(e))
		if constants.IsAllowedExt(e) {
			out[e] = struct{}{}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
