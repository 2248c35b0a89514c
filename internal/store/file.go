package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileExt = ".json"

// FileStore writes one <sanitized title>.json file per page.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the data directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file a title is stored in.
func (s *FileStore) Path(title string) string {
	return filepath.Join(s.dir, SanitizeFilename(title)+fileExt)
}

// Save writes the record atomically via a temp file and rename.
func (s *FileStore) Save(ctx context.Context, title string, record *PageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	path := s.Path(title)
	tmp, err := os.CreateTemp(s.dir, ".page-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads the record for title.
func (s *FileStore) Load(ctx context.Context, title string) (*PageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.Path(title)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound(title)
		}
		return nil, err
	}
	return decodeRecord(data, path)
}

// List reads every record in the directory in filename order. Files that
// do not decode are skipped.
func (s *FileStore) List(ctx context.Context) ([]*PageRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) || isReportFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	records := make([]*PageRecord, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		record, err := decodeRecord(data, name)
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

// isReportFile reports whether name is the crawl report written next to the
// page files.
func isReportFile(name string) bool {
	return name == "report.json"
}
