// Package security keeps generated report files inside the directories the
// operator chose for them.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrOutsideDir is returned for paths that resolve outside their directory.
var ErrOutsideDir = errors.New("path escapes its directory")

// maxFilenameLen bounds SanitizeFilename output, in bytes.
const maxFilenameLen = 128

// canonical resolves path to an absolute path with symlinks evaluated. For a
// path that does not exist yet, the deepest existing ancestor is resolved
// and the rest appended, so a symlinked parent cannot smuggle a new file
// elsewhere.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	var rest []string
	for dir := abs; ; {
		parent := filepath.Dir(dir)
		rest = append([]string{filepath.Base(dir)}, rest...)
		if parent == dir {
			return abs, nil
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		dir = parent
	}
}

// WithinDir reports an ErrOutsideDir error unless path resolves to dir or
// somewhere below it. dir must exist.
func WithinDir(path, dir string) error {
	p, err := canonical(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	d, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	rel, err := filepath.Rel(d, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is not inside %s", ErrOutsideDir, path, dir)
	}
	return nil
}

// WithinAnyDir is WithinDir against a list of directories.
func WithinAnyDir(path string, dirs []string) error {
	if len(dirs) == 0 {
		return errors.New("no allowed directories")
	}
	for _, dir := range dirs {
		if WithinDir(path, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not inside any of %v", ErrOutsideDir, path, dirs)
}

// ValidateExportPath accepts paths below the working directory or the
// system temp directory.
func ValidateExportPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	return WithinAnyDir(path, []string{cwd, os.TempDir()})
}

// OutputPath joins a sanitised form of name onto dir and checks the result
// stays inside dir. dir is created if missing.
func OutputPath(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, SanitizeFilename(name))
	if err := WithinDir(path, dir); err != nil {
		return "", err
	}
	return path, nil
}

// SanitizeFilename turns an arbitrary label, such as a participant code, into
// a file name: runs of anything but ASCII letters, digits, '.', '_' and '-'
// become one '_', leading and trailing dots and underscores are dropped and
// the result is capped at maxFilenameLen bytes. It never returns "".
func SanitizeFilename(s string) string {
	out := make([]byte, 0, min(len(s), maxFilenameLen))
	for len(s) > 0 && len(out) < maxFilenameLen {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r < utf8.RuneSelf && isFilenameByte(byte(r)) {
			out = append(out, byte(r))
		} else if len(out) == 0 || out[len(out)-1] != '_' {
			out = append(out, '_')
		}
	}
	name := strings.Trim(string(out), "._")
	if name == "" {
		return "unknown"
	}
	return name
}

func isFilenameByte(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return c == '.' || c == '_' || c == '-'
}
