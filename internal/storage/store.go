// Package storage keeps uploaded files for the reference server, either in
// a local directory (FSStore) or in an S3-compatible bucket (S3Store).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidName is returned for file names that do not name a single file.
var ErrInvalidName = errors.New("storage: invalid file name")

// Store persists uploaded files by name. Put replaces an existing file of
// the same name; List returns names in lexical order.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, contentType string) (int64, error)
	List(ctx context.Context) ([]string, error)
}

// SanitizeName reduces a client-supplied file name to its NFC-normalized
// base name. Names that reduce to nothing, "." or ".." are rejected.
func SanitizeName(name string) (string, error) {
	// Clients may send Windows paths; treat both separators alike.
	name = strings.ReplaceAll(name, `\`, "/")
	base := norm.NFC.String(filepath.Base(strings.TrimSpace(name)))

	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if strings.HasPrefix(base, ".upload-") {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}

	return base, nil
}
