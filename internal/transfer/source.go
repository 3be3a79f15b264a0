package transfer

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"
)

// sniffLen is how much of a file is read to detect its media type.
const sniffLen = 512

const defaultMediaType = "application/octet-stream"

// Source describes the file behind a transfer.
type Source struct {
	Path      string
	Name      string
	MediaType string
	Size      int64
}

// OpenSource opens path for reading and describes it. The returned file is
// positioned at offset 0. Any failure wraps ErrFileUnreadable.
func OpenSource(path string) (*os.File, Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Source{}, fmt.Errorf("%w: %w", ErrFileUnreadable, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Source{}, fmt.Errorf("%w: %w", ErrFileUnreadable, err)
	}

	if !info.Mode().IsRegular() {
		f.Close()
		return nil, Source{}, fmt.Errorf("%w: %s is not a regular file", ErrFileUnreadable, path)
	}

	mediaType, err := detectMediaType(f, path)
	if err != nil {
		f.Close()
		return nil, Source{}, fmt.Errorf("%w: %w", ErrFileUnreadable, err)
	}

	return f, Source{
		Path:      path,
		Name:      norm.NFC.String(filepath.Base(path)),
		MediaType: mediaType,
		Size:      info.Size(),
	}, nil
}

// detectMediaType sniffs the head of f, falling back to the extension when
// the content is not recognized, and rewinds f.
func detectMediaType(f io.ReadSeeker, path string) (string, error) {
	head := make([]byte, sniffLen)

	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	detected := mimetype.Detect(head[:n])
	if !detected.Is(defaultMediaType) {
		return detected.String(), nil
	}

	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt, nil
	}

	return defaultMediaType, nil
}
