package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/heatx/energy-engine/allocation"
)

// FileExporter writes each finalized bill into Dir. It satisfies
// allocation.Exporter; failures are logged, not returned. Safe for
// concurrent use.
type FileExporter struct {
	Dir    string
	Format Format
	log    zerolog.Logger

	mu       sync.Mutex
	lastPath string
}

func NewFileExporter(dir string, f Format, log zerolog.Logger) *FileExporter {
	return &FileExporter{
		Dir:    dir,
		Format: f,
		log:    log.With().Str("component", "file_exporter").Logger(),
	}
}

func (e *FileExporter) ExportReport(r allocation.Report) {
	path, err := e.write(r)
	if err != nil {
		e.log.Error().Err(err).Str("dir", e.Dir).Msg("Failed to export allocation bill")
		return
	}
	e.mu.Lock()
	e.lastPath = path
	e.mu.Unlock()
	e.log.Info().Str("path", path).Str("format", string(e.Format)).Msg("Allocation bill exported")
}

// LastPath is the file written by the most recent successful export.
func (e *FileExporter) LastPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPath
}

func (e *FileExporter) write(r allocation.Report) (string, error) {
	data, err := Render(r, e.Format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	f, path, err := createUnique(e.Dir, Filename(r, e.Format))
	if err != nil {
		return "", fmt.Errorf("create bill file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write bill: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write bill: %w", err)
	}
	return path, nil
}

// maxNameAttempts bounds the "-2", "-3", ... suffixes tried for bills
// finalized within the same second.
const maxNameAttempts = 1000

// createUnique creates name in dir, never replacing an existing file.
// On collision it tries name-2.ext, name-3.ext and so on.
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxNameAttempts; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("no free name for %s after %d attempts", name, maxNameAttempts)
}

// WriterExporter streams each bill to an io.Writer (stdout for the CLI).
type WriterExporter struct {
	W      io.Writer
	Format Format
	Log    zerolog.Logger
}

func (e WriterExporter) ExportReport(r allocation.Report) {
	data, err := Render(r, e.Format)
	if err == nil {
		_, err = e.W.Write(data)
	}
	if err != nil {
		e.Log.Error().Err(err).Msg("Failed to write allocation bill")
	}
}
