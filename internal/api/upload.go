package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// FilePartName is the multipart form field the server reads the upload from.
const FilePartName = "file"

// ProgressFunc receives the number of file bytes handed to the transport so
// far and the file size (0 when unknown).
type ProgressFunc func(sent, total int64)

// UploadPart describes the single file part of an upload request. Content
// must be positioned at the start of the file.
type UploadPart struct {
	FileName    string
	ContentType string
	Content     io.Reader
	Size        int64
}

// errBodyFenced is returned to the transport when it reads the request body
// after the attempt that owned it has returned.
var errBodyFenced = errors.New("api: upload body no longer available")

// Upload POSTs part as multipart/form-data to /upload. It does not retry:
// the content reader is consumed by the attempt. When Upload returns, the
// transport can no longer read from part.Content, so the caller may rewind
// or close it.
func (c *Client) Upload(ctx context.Context, tok *oauth2.Token, part UploadPart, progress ProgressFunc) error {
	url := c.baseURL + "/upload"

	preamble, trailer, contentType, err := multipartFrame(part)
	if err != nil {
		return fmt.Errorf("api: building multipart body: %w", err)
	}

	content := &countingReader{r: part.Content, total: part.Size, progress: progress}
	body := &fencedReader{r: io.MultiReader(bytes.NewReader(preamble), content, bytes.NewReader(trailer))}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("api: creating upload request: %w", err)
	}

	if part.Size >= 0 {
		req.ContentLength = int64(len(preamble)) + part.Size + int64(len(trailer))
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)
	bearer(tok)(req)

	c.logger.Debug("sending upload",
		slog.String("file_name", part.FileName),
		slog.String("content_type", part.ContentType),
		slog.Int64("size", part.Size),
	)

	resp, err := c.httpClient.Do(req)
	body.fence()

	if err != nil {
		c.logger.Debug("upload request failed",
			slog.String("file_name", part.FileName),
			slog.String("error", err.Error()),
		)

		return fmt.Errorf("api: upload request failed: %w", err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		drainAndClose(resp.Body)

		c.logger.Debug("upload accepted",
			slog.String("file_name", part.FileName),
			slog.Int("status", resp.StatusCode),
		)

		return nil
	}

	return errorFromResponse(resp)
}

// multipartFrame renders everything around the file content: the part
// headers before it and the closing boundary after it.
func multipartFrame(part UploadPart) (preamble, trailer []byte, contentType string, err error) {
	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	ct := part.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FilePartName, escapeQuotes(part.FileName)))
	h.Set("Content-Type", ct)

	if _, err := mw.CreatePart(h); err != nil {
		return nil, nil, "", err
	}

	preamble = bytes.Clone(buf.Bytes())
	buf.Reset()

	if err := mw.Close(); err != nil {
		return nil, nil, "", err
	}

	trailer = bytes.Clone(buf.Bytes())

	return preamble, trailer, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// countingReader reports cumulative bytes read through progress.
type countingReader struct {
	r        io.Reader
	sent     int64
	total    int64
	progress ProgressFunc
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.sent += int64(n)

		if cr.progress != nil {
			cr.progress(cr.sent, cr.total)
		}
	}

	return n, err
}

// fencedReader lets the upload cut the transport off from the body. The
// transport may keep reading a request body after Do returns; once fenced,
// reads fail and no further progress is reported.
type fencedReader struct {
	mu     sync.Mutex
	r      io.Reader
	fenced bool
}

func (f *fencedReader) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fenced {
		return 0, errBodyFenced
	}

	return f.r.Read(p)
}

// Close is called by the transport; it fences the body.
func (f *fencedReader) Close() error {
	f.fence()
	return nil
}

func (f *fencedReader) fence() {
	f.mu.Lock()
	f.fenced = true
	f.mu.Unlock()
}
