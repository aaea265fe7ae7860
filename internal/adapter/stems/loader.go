package stems

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches the bundled verb conjugation resources.
const DefaultPattern = "top_*_verbs_conjugated.txt"

// FileLoader reads tables from <Dir>/<lang>/<Pattern>.
type FileLoader struct {
	Dir     string
	Pattern string
}

func NewFileLoader(dir, pattern string) *FileLoader {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &FileLoader{Dir: dir, Pattern: pattern}
}

// Load parses the first resource matching the pattern, in sorted order.
func (l *FileLoader) Load(lang string) (Table, error) {
	path, err := l.resourcePath(lang)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Table{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stem resource: %w", err)
	}
	defer f.Close()

	table, err := ParseTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return table, nil
}

func (l *FileLoader) resourcePath(lang string) (string, error) {
	langDir := filepath.Join(l.Dir, lang)
	if _, err := os.Stat(langDir); os.IsNotExist(err) {
		return "", nil
	}

	matches, err := doublestar.Glob(os.DirFS(langDir), l.Pattern)
	if err != nil {
		return "", fmt.Errorf("invalid stem resource pattern %q: %w", l.Pattern, err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return filepath.Join(langDir, filepath.FromSlash(matches[0])), nil
}
