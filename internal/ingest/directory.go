package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/medilink/constants"
)

// ScanOptions controls a directory walk.
type ScanOptions struct {
	Exts       map[string]struct{} // nil = every accepted document type
	SkipHidden bool
}

// ScanDirectory walks root and returns every matching document with its
// content hash. Per-file failures are recorded in the result and the walk
// continues; the error is non-nil only for a bad root or a canceled ctx.
func ScanDirectory(ctx context.Context, root string, opts ScanOptions, logger *slog.Logger) ([]File, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, DirStats{}, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, DirStats{}, fmt.Errorf("root %q is not a directory", root)
	}

	var results []File
	var stats DirStats
	seen := map[string]string{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, File{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !Allowed(path, opts.Exts) {
			return nil
		}
		stats.Matched++

		f, err := Inspect(path)
		if err != nil {
			logger.Warn("ingest.scan.file_failed", "path", path, "error", err)
			results = append(results, File{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if first, ok := seen[f.HashHex]; ok {
			f.Duplicate = true
			stats.Duplicates++
			logger.Debug("ingest.scan.duplicate", "path", path, "first", first)
		} else {
			seen[f.HashHex] = path
		}
		results = append(results, f)
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	logger.Info("ingest.scan.ok",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"failed", stats.Failed,
		"duplicates", stats.Duplicates,
	)
	return results, stats, nil
}

// Inspect hashes one file and classifies its extension.
func Inspect(path string) (File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("abs path: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	if !constants.IsAllowedExt(ext) {
		return File{}, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	fh, err := os.Open(abs)
	if err != nil {
		return File{}, fmt.Errorf("open: %w", err)
	}
	defer fh.Close()

	h := sha256.New()
	n, err := io.Copy(h, fh)
	if err != nil {
		return File{}, fmt.Errorf("hash: %w", err)
	}
	return File{
		Path:    abs,
		Ext:     ext,
		Format:  constants.MapExtToFormat(ext),
		HashHex: hex.EncodeToString(h.Sum(nil)),
		Size:    n,
	}, nil
}
