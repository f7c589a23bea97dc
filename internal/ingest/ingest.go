// Package ingest loads configured CSV datasets into the store, applying
// exclude filtering and checksum-based skipping of unchanged files.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kamusis/fitmatch/internal/logging"
	"github.com/kamusis/fitmatch/internal/series"
	"github.com/kamusis/fitmatch/internal/store"
)

// TableStore is the part of the store ingest writes to.
type TableStore interface {
	TableMeta(ctx context.Context, name string) (*store.TableMeta, error)
	PutTable(ctx context.Context, t *series.Table, checksum, source string) (*store.TableMeta, error)
}

// Source is one dataset to load.
type Source struct {
	Name string
	Role series.Role
	// Path is relative to the import directory unless absolute. A relative
	// path may leave the directory ("../train.csv").
	Path string
}

// Status is the outcome of loading one source.
type Status string

const (
	StatusLoaded  Status = "loaded"
	StatusSkipped Status = "unchanged"
)

// TableResult reports one loaded table.
type TableResult struct {
	Name   string
	Path   string
	Rows   int
	Status Status
}

// Result is returned by ImportDir.
type Result struct {
	Tables  []TableResult
	Loaded  int // tables written to the store
	Skipped int // tables whose file checksum matched the stored one

	// Unused lists CSV files under the import directory that no dataset
	// refers to.
	Unused []string
}

// outside reports whether the cleaned relative path rel leaves its base
// directory.
func outside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ImportDir loads every source found under dir. Excluded files are never
// read; a source that is missing or excluded is an error. Sources with an
// absolute path or a relative path leading out of dir are read directly.
// With force, stored tables are replaced even when the file is unchanged.
func ImportDir(ctx context.Context, st TableStore, logger *logging.Logger, dir string, sources []Source, excludes []string, force bool) (*Result, error) {
	result := &Result{}

	byRel := make(map[string]Source, len(sources))
	var direct []Source
	for _, src := range sources {
		if filepath.IsAbs(src.Path) {
			direct = append(direct, src)
			continue
		}
		rel := filepath.Clean(src.Path)
		if outside(rel) {
			src.Path = filepath.Join(dir, src.Path)
			direct = append(direct, src)
			continue
		}
		byRel[rel] = src
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if matchesExclude(rel, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		src, ok := byRel[rel]
		if !ok {
			if strings.EqualFold(filepath.Ext(rel), ".csv") {
				result.Unused = append(result.Unused, rel)
			}
			return nil
		}
		delete(byRel, rel)
		tr, err := LoadFile(ctx, st, logger, src.Name, src.Role, path, force)
		if err != nil {
			return err
		}
		result.add(tr)
		return nil
	})
	if err != nil {
		return result, err
	}

	for rel, src := range byRel {
		if matchesExclude(rel, excludes) {
			return result, fmt.Errorf("dataset %s: %s is excluded", src.Name, rel)
		}
		return result, fmt.Errorf("dataset %s: %w", src.Name, &fs.PathError{Op: "open", Path: filepath.Join(dir, rel), Err: fs.ErrNotExist})
	}
	for _, src := range direct {
		tr, err := LoadFile(ctx, st, logger, src.Name, src.Role, src.Path, force)
		if err != nil {
			return result, err
		}
		result.add(tr)
	}
	return result, nil
}

func (r *Result) add(tr TableResult) {
	r.Tables = append(r.Tables, tr)
	if tr.Status == StatusSkipped {
		r.Skipped++
		return
	}
	r.Loaded++
}

// LoadFile parses the CSV at path and stores it as table name, replacing any
// previous contents. An unchanged file is skipped unless force is set.
// logger may be nil.
func LoadFile(ctx context.Context, st TableStore, logger *logging.Logger, name string, role series.Role, path string, force bool) (TableResult, error) {
	logger = logging.OrNoop(logger).WithTable(name)
	data, err := os.ReadFile(path)
	if err != nil {
		return TableResult{}, fmt.Errorf("dataset %s: %w", name, err)
	}
	sum := fmt.Sprintf("%x", sha256.Sum256(data))

	if !force {
		meta, err := st.TableMeta(ctx, name)
		switch {
		case err == nil && meta.Checksum == sum && meta.Role == role:
			logger.DebugContext(ctx, "table unchanged", "path", path, "rows", meta.Rows)
			return TableResult{Name: name, Path: path, Rows: meta.Rows, Status: StatusSkipped}, nil
		case err != nil && !errors.Is(err, store.ErrTableNotFound):
			return TableResult{}, err
		}
	}

	t, err := series.ReadCSV(name, role, bytes.NewReader(data))
	if err != nil {
		return TableResult{}, fmt.Errorf("%s: %w", path, err)
	}
	meta, err := st.PutTable(ctx, t, sum, path)
	if err != nil {
		return TableResult{}, err
	}
	logger.InfoContext(ctx, "table loaded", "path", path, "rows", meta.Rows, "role", role.String())
	return TableResult{Name: name, Path: path, Rows: meta.Rows, Status: StatusLoaded}, nil
}

// matchesExclude reports whether relPath matches any of the given glob patterns.
func matchesExclude(relPath string, patterns []string) bool {
	name := filepath.Base(relPath)
	for _, pattern := range patterns {
		// Match against the full relative path AND just the basename.
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}
