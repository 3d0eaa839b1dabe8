// Package importer turns uploaded expense spreadsheets into preview rows
// and manages the local import directory.
package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/finboard/finboard/internal/model"
)

// ErrUnsupportedFile is returned for files that cannot be imported.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Parser converts one uploaded document into ImportRows.
type Parser interface {
	// Parse reads the named sheet, or the first sheet when sheet is empty.
	// Formats without sheets ignore it.
	Parse(r io.ReadSeeker, sheet string) ([]model.ImportRow, error)
	Format() string
}

// Registry holds parsers by format, which is also the file extension.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes an uploadable file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Parse picks the parser from the file extension and runs it.
func (r *Registry) Parse(fileName string, rd io.ReadSeeker, sheet string) ([]model.ImportRow, error) {
	format, err := FormatOf(fileName)
	if err != nil {
		return nil, err
	}
	p := r.Get(format)
	if p == nil {
		return nil, fmt.Errorf("%w: no parser for %s documents", ErrUnsupportedFile, format)
	}
	rows, err := p.Parse(rd, sheet)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fileName, err)
	}
	return rows, nil
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CSVParser{})
	r.Register(&XLSXParser{})
	r.Register(&XLSParser{})
	return r
}

// uploadFormats are the extensions accepted for upload. PDF is accepted by
// the client and left to the backend to extract.
var uploadFormats = map[string]bool{
	"csv":  true,
	"xlsx": true,
	"xls":  true,
	"pdf":  true,
}

// FormatOf returns the lower-case extension of fileName without the dot.
func FormatOf(fileName string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if !uploadFormats[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFile, fileName)
	}
	return ext, nil
}

// ValidateUpload rejects files that must not be sent to import-preview.
func ValidateUpload(fileName string) error {
	if strings.TrimSpace(fileName) == "" {
		return fmt.Errorf("%w: no file name", ErrUnsupportedFile)
	}
	_, err := FormatOf(fileName)
	return err
}

// processedDir is the subdirectory of the import dir for committed files.
const processedDir = "processed"

// Scan returns uploadable files in dir, sorted by name.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ValidateUpload(e.Name()) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// MarkProcessed moves a file from dir to dir/processed/.
func MarkProcessed(dir, fileName string) error {
	src := filepath.Join(dir, fileName)
	dstDir := filepath.Join(dir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
