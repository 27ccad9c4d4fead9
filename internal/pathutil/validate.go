// Package pathutil keeps generated files inside their output directories and
// shortens paths for diagnostics.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path escapes its root directory.
var ErrOutsideRoot = errors.New("path escapes root directory")

// RedactPath reduces a full path to .../<parent>/<basename>.
// For example, "/scratch/user/data/jobs/RUN_C0_P1.sb" becomes ".../jobs/RUN_C0_P1.sb".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// Within checks that path resolves to root or somewhere beneath it. Neither
// needs to exist yet; symlinks on their existing ancestors are followed.
func Within(path, root string) error {
	if path == "" || root == "" {
		return fmt.Errorf("path and root are required")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("%q: path contains null byte", RedactPath(path))
	}

	p, err := resolve(path)
	if err != nil {
		return err
	}
	r, err := resolve(root)
	if err != nil {
		return err
	}
	if !isSubpath(p, r) {
		return fmt.Errorf("%s: %w", RedactPath(path), ErrOutsideRoot)
	}
	return nil
}

// resolve makes path absolute and follows symlinks on its deepest existing
// ancestor, re-appending the tail that does not exist yet.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", RedactPath(path), err)
	}

	var tail []string
	dir := abs
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			parts := append([]string{resolved}, tail...)
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("resolving %s: %w", RedactPath(path), err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("resolving %s: no existing ancestor", RedactPath(path))
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
	}
}

// isSubpath reports whether path equals base or lies beneath it.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}
