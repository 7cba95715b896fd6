package loaders

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
)

// pathLocks serializes writers per output path. Concurrent year workers can
// target the same group-store file, and interleaved csv writes would corrupt
// rows without this.
var pathLocks = struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}{locks: map[string]*sync.Mutex{}}

func lockFor(path string) *sync.Mutex {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	pathLocks.mu.Lock()
	defer pathLocks.mu.Unlock()
	l, ok := pathLocks.locks[abs]
	if !ok {
		l = &sync.Mutex{}
		pathLocks.locks[abs] = l
	}
	return l
}

// WriteCSV writes a frame to path, replacing any existing file. Parent
// directories are created as needed.
func WriteCSV(f *core.Frame, path string) error {
	l := lockFor(path)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()
	return writeRows(file, path, f, true)
}

// AppendCSV appends a frame's rows to path, writing the header only when the
// file does not exist yet. Intended for streaming writes where one output
// file accumulates rows across parameters and years.
func AppendCSV(f *core.Frame, path string) error {
	if f.Empty() {
		return nil
	}
	l := lockFor(path)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return writeRows(file, path, f, writeHeader)
}

func writeRows(file *os.File, path string, f *core.Frame, header bool) error {
	w := csv.NewWriter(file)
	if header {
		if err := w.Write(f.Columns); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	for _, row := range f.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// ReadCSV loads path into a frame. The first record is the header. Short
// rows are padded with empty cells so column access stays safe.
func ReadCSV(path string) (*core.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return &core.Frame{}, nil
	}
	f := &core.Frame{Columns: records[0], Rows: make([][]string, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if len(rec) < len(f.Columns) {
			padded := make([]string, len(f.Columns))
			copy(padded, rec)
			rec = padded
		}
		f.Rows = append(f.Rows, rec[:len(f.Columns)])
	}
	return f, nil
}
