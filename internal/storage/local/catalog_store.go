// Package local implements the catalog store on the local filesystem.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/catalog"
	hasher "github.com/JakeFAU/appcatalog/internal/hash/sha256"
	"github.com/JakeFAU/appcatalog/internal/logging"
	"github.com/JakeFAU/appcatalog/internal/metrics"
)

const (
	catalogExt = ".json"
	// EnrichedMarker is appended to a catalog file's base name for enriched output.
	EnrichedMarker = "_enriched"
)

// ErrUnreadableCatalog is returned when a catalog file cannot be read or parsed.
var ErrUnreadableCatalog = errors.New("unreadable catalog file")

// Config captures the parameters for the local catalog store.
type Config struct {
	// BaseDir is the root directory all catalog paths are relative to.
	BaseDir string
}

// Written describes a saved catalog file.
type Written struct {
	Path    string
	Digest  string
	Records int
	Bytes   int
	// Unchanged is set when the replaced file already held identical content.
	Unchanged bool
}

// Store reads and writes catalog files as ordered JSON arrays.
type Store struct {
	baseDir string
	digests *hasher.Hasher
	logger  *zap.Logger
}

// New creates a new local filesystem-backed catalog store.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case err != nil && os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	if err := checkWritable(cfg.BaseDir); err != nil {
		return nil, err
	}

	return &Store{
		baseDir: filepath.Clean(cfg.BaseDir),
		digests: hasher.New(),
		logger:  logging.OrNop(logger),
	}, nil
}

// BaseDir returns the store root.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Save serializes records (a slice) as an indented JSON array at name,
// creating parent directories and replacing any existing file. Written.Unchanged
// reports whether the replaced file already held the same bytes.
func (s *Store) Save(ctx context.Context, name string, records any) (Written, error) {
	if err := ctx.Err(); err != nil {
		return Written{}, fmt.Errorf("context canceled: %w", err)
	}
	fullPath, err := s.resolve(name)
	if err != nil {
		return Written{}, err
	}
	payload, count, err := encode(records)
	if err != nil {
		return Written{}, err
	}
	w := Written{
		Path:    fullPath,
		Digest:  s.digests.Hash(payload),
		Records: count,
		Bytes:   len(payload),
	}
	if existing, err := s.digests.HashFile(fullPath); err == nil && existing == w.Digest {
		w.Unchanged = true
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		metrics.ObserveCatalogFile("write", "error")
		return Written{}, fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := writeAtomic(fullPath, payload); err != nil {
		metrics.ObserveCatalogFile("write", "error")
		return Written{}, err
	}
	metrics.ObserveCatalogFile("write", "ok")

	s.logger.Info("catalog written",
		zap.String("path", w.Path),
		zap.Int("records", w.Records),
		zap.String("sha256", w.Digest),
		zap.Bool("unchanged", w.Unchanged),
	)
	return w, nil
}

// Load parses the JSON array at name. Any read or decode failure wraps
// ErrUnreadableCatalog so batch callers can skip the file.
func (s *Store) Load(ctx context.Context, name string) ([]catalog.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	fullPath, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is confined to the store base directory by resolve.
	data, err := os.ReadFile(fullPath)
	if err != nil {
		metrics.ObserveCatalogFile("read", "error")
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnreadableCatalog, name, err)
	}
	var records []catalog.Record
	if err := json.Unmarshal(data, &records); err != nil {
		metrics.ObserveCatalogFile("read", "error")
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnreadableCatalog, name, err)
	}
	metrics.ObserveCatalogFile("read", "ok")
	return records, nil
}

// List returns the catalog files directly inside dir, sorted by name.
// Enriched outputs and hidden files are excluded.
func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	fullDir, err := s.resolveDir(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(fullDir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsCatalogFile(entry.Name()) {
			continue
		}
		names = append(names, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(names)
	return names, nil
}

// IsCatalogFile reports whether name looks like a collected (not enriched) catalog file.
func IsCatalogFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || !strings.EqualFold(filepath.Ext(base), catalogExt) {
		return false
	}
	return !strings.Contains(base, EnrichedMarker)
}

// EnrichedName derives the enriched sibling of a catalog file name.
func EnrichedName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + EnrichedMarker + ext
}

func (s *Store) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path is required")
	}
	fullPath := filepath.Clean(filepath.Join(s.baseDir, name))
	rel, ok := within(s.baseDir, fullPath)
	if !ok || rel == "." {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}

func (s *Store) resolveDir(dir string) (string, error) {
	fullDir := filepath.Clean(filepath.Join(s.baseDir, dir))
	if _, ok := within(s.baseDir, fullDir); !ok {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullDir, nil
}

// within reports whether target lies inside base and returns its relative path.
func within(base, target string) (string, bool) {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func encode(records any) ([]byte, int, error) {
	count := 0
	switch v := records.(type) {
	case []catalog.Record:
		if v == nil {
			records = []catalog.Record{}
		}
		count = len(v)
	case []catalog.EnrichedRecord:
		if v == nil {
			records = []catalog.EnrichedRecord{}
		}
		count = len(v)
	default:
		return nil, 0, fmt.Errorf("unsupported catalog payload %T", records)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, 0, fmt.Errorf("marshal catalog: %w", err)
	}
	return buf.Bytes(), count, nil
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".catalog-check-*")
	if err != nil {
		return fmt.Errorf("base directory is not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

func writeAtomic(fullPath string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".catalog-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", fullPath, err)
	}
	return nil
}
