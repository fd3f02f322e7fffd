// Package archive writes offline JSON archives of every store collection.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/abrezinsky/slotboard/internal/repository"
)

const (
	// DefaultKeep is how many archives are kept when no limit is given.
	DefaultKeep = 12
	// FilePrefix and FileSuffix frame the archive date in file names.
	FilePrefix = "slotboard-"
	FileSuffix = ".json"

	dateLayout = "2006-01-02"
)

// Info describes one archive file
type Info struct {
	Path string
	Date time.Time
	Size int64
}

// Result reports what an export wrote
type Result struct {
	Path        string
	Collections []string
	Documents   int
	counts      map[string]int
}

// Has reports whether the archive contains the named collection.
func (r *Result) Has(collection string) bool {
	for _, c := range r.Collections {
		if c == collection {
			return true
		}
	}
	return false
}

// Count returns how many documents of the named collection were archived.
func (r *Result) Count(collection string) int {
	return r.counts[collection]
}

// Writer exports collections into dated archive files
type Writer struct {
	dir  string
	keep int
	loc  *time.Location
	now  func() time.Time
}

// NewWriter creates a writer for dir keeping the newest keep archives.
func NewWriter(dir string, keep int, loc *time.Location) *Writer {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if loc == nil {
		loc = time.Local
	}
	return &Writer{dir: dir, keep: keep, loc: loc, now: time.Now}
}

// SetClock replaces the time source used to date archives.
func (w *Writer) SetClock(now func() time.Time) {
	w.now = now
}

// Dir returns the archive directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Export reads every collection from src and writes them to today's archive,
// replacing an earlier archive from the same day. Nothing is written unless
// every collection was read.
func (w *Writer) Export(ctx context.Context, src repository.ArchiveRepository) (*Result, error) {
	names, err := src.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	result := &Result{counts: make(map[string]int, len(names))}
	contents := make(map[string][]map[string]any, len(names))
	for _, name := range names {
		docs, err := src.ExportCollection(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", name, err)
		}
		contents[name] = docs
		result.Collections = append(result.Collections, name)
		result.Documents += len(docs)
		result.counts[name] = len(docs)
	}

	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	result.Path = filepath.Join(w.dir, FilePrefix+w.now().In(w.loc).Format(dateLayout)+FileSuffix)
	if err := writeAtomic(result.Path, data); err != nil {
		return nil, err
	}

	if err := w.rotate(); err != nil {
		return result, fmt.Errorf("rotate archives: %w", err)
	}
	return result, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename archive: %w", err)
	}
	return nil
}

// List returns the archives in the directory, newest first.
func (w *Writer) List() ([]Info, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var archives []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileSuffix) {
			continue
		}
		date, err := time.ParseInLocation(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), FileSuffix), w.loc)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		archives = append(archives, Info{
			Path: filepath.Join(w.dir, name),
			Date: date,
			Size: info.Size(),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Date.After(archives[j].Date)
	})
	return archives, nil
}

func (w *Writer) rotate() error {
	archives, err := w.List()
	if err != nil {
		return err
	}
	for i := w.keep; i < len(archives); i++ {
		if err := os.Remove(archives[i].Path); err != nil {
			return err
		}
	}
	return nil
}

// Read loads an archive written by Export.
func Read(path string) (map[string][]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var contents map[string][]map[string]any
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", filepath.Base(path), err)
	}
	return contents, nil
}
