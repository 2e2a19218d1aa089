package prompt

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem is the read-only view of the filesystem used to load templates.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	Open(name string) (fs.File, error)
}

// OSFileSystem reads templates from the host filesystem.
type OSFileSystem struct{}

// Stat implements FileSystem.
func (OSFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// Open implements FileSystem.
func (OSFileSystem) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// loader adapts a FileSystem to pongo2.TemplateLoader so that include and
// extends tags resolve relative to the including template.
type loader struct {
	fsys FileSystem
}

func (l *loader) Abs(base, name string) string {
	if filepath.IsAbs(name) || base == "" {
		return filepath.Clean(name)
	}
	return filepath.Join(filepath.Dir(base), name)
}

func (l *loader) Get(path string) (io.Reader, error) {
	f, err := l.fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(trimTrailingNewline(string(data))), nil
}
