// Package discovery lists the Gaussian files a command should work on.
package discovery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lenhanpham/gaussian-extractor/internal/stringsutil"
)

// Options controls which directory entries are returned.
type Options struct {
	Dir        string
	Extensions []string
	// MaxSizeMB skips larger files; 0 disables the check.
	MaxSizeMB int
	// BatchSize reads the directory this many entries at a time; 0 reads it at once.
	BatchSize int
}

// Result holds matching file names (relative to Dir, sorted) and the names
// that matched but were skipped for size.
type Result struct {
	Files     []string
	Oversized []string
}

// ExpandExtensions normalizes extensions and adds ".out" whenever ".log" is
// requested, since Gaussian writes either depending on the platform.
func ExpandExtensions(exts ...string) []string {
	var out []string
	for _, e := range exts {
		e = NormalizeExtension(e)
		if e == "" {
			continue
		}
		out = append(out, e)
		if e == ".log" {
			out = append(out, ".out")
		}
	}
	return stringsutil.UniqueStrings(out)
}

// NormalizeExtension lower-cases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// HasExtension reports whether name ends in one of exts, ignoring case.
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext != "" && slices.Contains(exts, ext)
}

// Find lists regular files in opts.Dir whose extension matches.
func Find(opts Options) (Result, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	exts := make([]string, 0, len(opts.Extensions))
	for _, e := range opts.Extensions {
		if n := NormalizeExtension(e); n != "" {
			exts = append(exts, n)
		}
	}

	f, err := os.Open(dir)
	if err != nil {
		return Result{}, fmt.Errorf("open directory %s: %w", dir, err)
	}
	defer f.Close()

	n := opts.BatchSize
	if n <= 0 {
		n = -1
	}
	maxBytes := int64(opts.MaxSizeMB) * 1024 * 1024

	var res Result
	for {
		entries, err := f.ReadDir(n)
		for _, entry := range entries {
			if !HasExtension(entry.Name(), exts) {
				continue
			}
			info, ok := regularFile(dir, entry)
			if !ok {
				continue
			}
			if maxBytes > 0 && info.Size() > maxBytes {
				res.Oversized = append(res.Oversized, entry.Name())
				continue
			}
			res.Files = append(res.Files, entry.Name())
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Result{}, fmt.Errorf("read directory %s: %w", dir, err)
		}
		if n < 0 {
			break
		}
	}

	slices.Sort(res.Files)
	res.Files = slices.Compact(res.Files)
	slices.Sort(res.Oversized)
	return res, nil
}

// Describe names the extension set in messages, e.g. ".log/.out".
func Describe(exts []string) string {
	return strings.Join(exts, "/")
}

// regularFile resolves entry to a regular file, following symlinks. Dangling
// links and anything that is not a plain file are rejected.
func regularFile(dir string, entry os.DirEntry) (os.FileInfo, bool) {
	switch {
	case entry.Type().IsRegular():
		info, err := entry.Info()
		return info, err == nil
	case entry.Type()&os.ModeSymlink != 0:
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		return info, err == nil && info.Mode().IsRegular()
	}
	return nil, false
}
