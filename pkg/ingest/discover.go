package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gridwright/gridwright/pkg/entity"
)

// DefaultPatterns are the glob patterns Discover uses when the caller
// supplies none.
var DefaultPatterns = []string{"**/*.csv", "**/*.xlsx"}

// Errors returned by discovery.
var (
	// ErrInvalidPattern is returned when a glob pattern cannot be compiled.
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrUnknownEntity is returned when a file name does not identify an
	// entity kind.
	ErrUnknownEntity = errors.New("cannot determine entity kind from file name")
)

// DetectKind determines the entity kind a data file holds from its name.
// A file named "clients.csv", "sample_workers.xlsx", or "Tasks_v2.csv"
// maps to the obvious kind; a name matching no kind (or more than one)
// returns ErrUnknownEntity.
func DetectKind(filePath string) (entity.Kind, error) {
	name := strings.ToLower(path.Base(strings.ReplaceAll(filePath, "\\", "/")))

	var found entity.Kind
	matches := 0
	for _, kind := range entity.Kinds() {
		if strings.Contains(name, string(kind)) {
			found = kind
			matches++
		}
	}
	switch matches {
	case 1:
		return found, nil
	case 0:
		return "", fmt.Errorf("%w: %s", ErrUnknownEntity, filePath)
	default:
		return "", fmt.Errorf("%w: %s matches multiple kinds", ErrUnknownEntity, filePath)
	}
}

// Discover walks dir for data files matching the given doublestar
// patterns (DefaultPatterns if none) and returns their paths sorted.
// Hidden path segments (starting with '.') are skipped.
func Discover(dir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	fsys := os.DirFS(dir)
	seen := map[string]bool{}
	var out []string

	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPattern, pat)
		}
		matches, err := doublestar.Glob(fsys, pat)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pat, err)
		}
		for _, m := range matches {
			if seen[m] || isHidden(m) {
				continue
			}
			info, err := fs.Stat(fsys, m)
			if err != nil || info.IsDir() {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}

	sort.Strings(out)
	return out, nil
}

// DiscoverFiles discovers, classifies, and reads all data files under
// dir. Files whose names identify no entity kind are skipped.
func DiscoverFiles(dir string, patterns []string) ([]*File, error) {
	paths, err := Discover(dir, patterns)
	if err != nil {
		return nil, err
	}

	var files []*File
	for _, p := range paths {
		kind, err := DetectKind(p)
		if err != nil {
			continue
		}
		f, err := ReadFile(filepath.Join(dir, p), kind)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// isHidden reports whether any path segment starts with '.'.
func isHidden(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}
