package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
)

// ResolveImagePath resolves the imagePath of an annotation relative to the
// JSON file that references it. Absolute paths are returned unchanged.
// Windows-style separators written by labelme on Windows are accepted on
// other platforms.
func ResolveImagePath(jsonPath, imagePath string) string {
	if runtime.GOOS != "windows" {
		imagePath = strings.ReplaceAll(imagePath, `\`, "/")
	}
	if filepath.IsAbs(imagePath) {
		return filepath.Clean(imagePath)
	}
	return filepath.Join(filepath.Dir(jsonPath), imagePath)
}

// CanonicalKey returns the absolute, cleaned, symlink-resolved form of path.
// It identifies an image across annotation files that reference it by
// different relative paths. If the path does not exist the absolute cleaned
// path is used.
func CanonicalKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// UniquePath returns path if nothing exists there, otherwise the first free
// "<stem>_<n><ext>" sibling, counting from 1.
func UniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// CopyImage copies src into destDir under its own base name, choosing a
// unique name on collision. It returns the path written.
func CopyImage(src, destDir string) (string, error) {
	name := filepath.Base(src)
	if name == "." || name == string(filepath.Separator) {
		return "", errors.Newf("invalid source path %q", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", errors.Wrap(err, "failed to open source image")
	}
	defer in.Close()

	dest := UniquePath(filepath.Join(destDir, name))
	out, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrap(err, "failed to create destination image")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", errors.Wrapf(err, "failed to copy %s", src)
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrap(err, "failed to close destination image")
	}
	return dest, nil
}

// WriteFile writes content to path through a buffered writer.
func WriteFile(path, content string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(content); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SanitizeFilename replaces characters that are invalid in file names on
// common filesystems with underscores.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadLabelFile reads a label list with one label per line. Blank lines and
// lines starting with '#' are ignored; surrounding whitespace is trimmed.
func ReadLabelFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open label file %s", path)
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read label file %s", path)
	}
	return labels, nil
}
