package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File and directory permissions for stored uploads.
const (
	FilePerms = 0o600
	DirPerms  = 0o700
)

// tempPattern names in-progress writes; List skips them.
const tempPattern = ".upload-*.tmp"

// FSStore keeps files in a single local directory.
type FSStore struct {
	dir    string
	logger *slog.Logger
}

// NewFSStore creates dir if needed and returns a store rooted there.
func NewFSStore(dir string, logger *slog.Logger) (*FSStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return nil, fmt.Errorf("storage: creating upload dir %s: %w", dir, err)
	}

	return &FSStore{dir: dir, logger: logger}, nil
}

// Put writes r to name atomically: readers see either the previous file or
// the complete new one, never a partial upload.
func (s *FSStore) Put(ctx context.Context, name string, r io.Reader, _ string) (int64, error) {
	name, err := SanitizeName(name)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return 0, fmt.Errorf("storage: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("storage: setting permissions: %w", err)
	}

	n, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r})
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("storage: writing %s: %w", name, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("storage: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("storage: closing: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		return 0, fmt.Errorf("storage: renaming: %w", err)
	}

	success = true

	s.logger.Debug("stored upload", slog.String("name", name), slog.Int64("size", n))

	return n, nil
}

// List returns the regular files in the directory.
func (s *FSStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: listing %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".upload-") {
			continue
		}

		names = append(names, e.Name())
	}

	sort.Strings(names)

	return names, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
