package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/upload-go/internal/api"
)

// Handle identifies one transfer. The zero Handle is never issued.
type Handle uint64

// transfer is the per-handle state. mu serializes every event emitted for
// the handle, so once done is set nothing else is delivered.
type transfer struct {
	mu sync.Mutex

	handle Handle
	src    Source
	file   *os.File

	tok *oauth2.Token
	gen uint64

	started  bool
	inFlight bool
	parked   bool
	retried  bool
	canceled bool
	done     bool

	cancel context.CancelFunc
}

// Client runs transfers against an Uploader and reports their events to a
// sink.
type Client struct {
	up     Uploader
	sink   EventSink
	logger *slog.Logger

	next atomic.Uint64

	mu        sync.Mutex
	transfers map[Handle]*transfer

	wg sync.WaitGroup
}

// NewClient creates a transfer client. sink must be non-nil.
func NewClient(up Uploader, sink EventSink, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		up:        up,
		sink:      sink,
		logger:    logger,
		transfers: make(map[Handle]*transfer),
	}
}

// Open opens the file at path and registers a transfer for it without
// sending anything. No event is emitted for the handle until Start. On
// failure the error wraps ErrFileUnreadable and no handle is issued.
func (c *Client) Open(path string) (Handle, Source, error) {
	f, src, err := OpenSource(path)
	if err != nil {
		return 0, Source{}, err
	}

	t := &transfer{
		handle: Handle(c.next.Add(1)),
		src:    src,
		file:   f,
	}

	c.mu.Lock()
	c.transfers[t.handle] = t
	c.mu.Unlock()

	c.wg.Add(1)

	c.logger.Debug("transfer opened",
		slog.Uint64("handle", uint64(t.handle)),
		slog.String("path", src.Path),
		slog.String("media_type", src.MediaType),
		slog.Int64("size", src.Size),
	)

	return t.handle, src, nil
}

// Start sends the opened transfer with tok, which came from token
// generation gen. It returns immediately.
func (c *Client) Start(h Handle, tok *oauth2.Token, gen uint64) error {
	t, ok := c.lookup(h)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	if t.started {
		return fmt.Errorf("transfer: handle %d already started", h)
	}

	t.started = true
	t.tok = tok
	t.gen = gen
	c.launch(t)

	return nil
}

// Send opens path and starts it in one step.
func (c *Client) Send(path string, tok *oauth2.Token, gen uint64) (Handle, Source, error) {
	h, src, err := c.Open(path)
	if err != nil {
		return 0, Source{}, err
	}

	if err := c.Start(h, tok, gen); err != nil {
		return 0, Source{}, err
	}

	return h, src, nil
}

// Retry resubmits a transfer parked by AuthRequired, from the start of the
// file and under the same handle.
func (c *Client) Retry(h Handle, tok *oauth2.Token, gen uint64) error {
	t, ok := c.lookup(h)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	if !t.parked {
		return fmt.Errorf("%w: %d", ErrNotParked, h)
	}

	if _, err := t.file.Seek(0, io.SeekStart); err != nil {
		c.finish(t, Result{Kind: Failed, Err: fmt.Errorf("%w: rewinding: %w", ErrFileUnreadable, err)})
		return nil
	}

	t.parked = false
	t.retried = true
	t.tok = tok
	t.gen = gen

	c.logger.Info("retrying transfer with fresh token",
		slog.Uint64("handle", uint64(h)),
		slog.String("name", t.src.Name),
	)

	c.launch(t)

	return nil
}

// Fail ends a transfer that has no request in flight (parked or never
// started) with err.
func (c *Client) Fail(h Handle, err error) error {
	t, ok := c.lookup(h)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}

	if t.inFlight {
		return fmt.Errorf("transfer: handle %d has a request in flight", h)
	}

	c.finish(t, Result{Kind: Failed, Err: err})

	return nil
}

// Cancel requests abort of a live transfer and reports whether it was live.
// The Canceled event follows asynchronously when a request is in flight and
// before Cancel returns otherwise. Canceling twice, or canceling a finished
// or unknown handle, emits nothing.
func (c *Client) Cancel(h Handle) bool {
	t, ok := c.lookup(h)
	if !ok {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return false
	}

	if t.canceled {
		return true
	}

	t.canceled = true

	c.logger.Info("canceling transfer",
		slog.Uint64("handle", uint64(h)),
		slog.String("name", t.src.Name),
	)

	if t.inFlight {
		t.cancel()
		return true
	}

	c.finish(t, Result{Kind: Canceled})

	return true
}

// CancelAll cancels every live transfer and returns how many there were.
func (c *Client) CancelAll() int {
	c.mu.Lock()
	handles := make([]Handle, 0, len(c.transfers))

	for h := range c.transfers {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	n := 0

	for _, h := range handles {
		if c.Cancel(h) {
			n++
		}
	}

	return n
}

// Active returns the number of transfers that have not finished.
func (c *Client) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.transfers)
}

// Wait blocks until every opened transfer has delivered its terminal event
// or ctx is done.
func (c *Client) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) lookup(h Handle) (*transfer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.transfers[h]

	return t, ok
}

// launch starts one request attempt. Called with t.mu held.
func (c *Client) launch(t *transfer) {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.inFlight = true

	part := api.UploadPart{
		FileName:    t.src.Name,
		ContentType: t.src.MediaType,
		Content:     t.file,
		Size:        t.src.Size,
	}
	tok := t.tok

	go func() {
		defer cancel()

		err := c.up.Upload(ctx, tok, part, func(sent, total int64) {
			c.progress(t, sent, total)
		})

		c.complete(t, err)
	}()
}

func (c *Client) progress(t *transfer, sent, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done || t.canceled || !t.inFlight {
		return
	}

	c.sink.Progress(t.handle, sent, total)
}

// complete settles an attempt that returned err.
func (c *Client) complete(t *transfer, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.inFlight = false
	t.cancel = nil

	if t.done {
		return
	}

	switch {
	case t.canceled:
		c.finish(t, Result{Kind: Canceled})

	case err == nil:
		c.finish(t, Result{Kind: Success})

	case errors.Is(err, api.ErrUnauthorized) && !t.retried:
		t.parked = true

		c.logger.Info("upload needs credentials",
			slog.Uint64("handle", uint64(t.handle)),
			slog.String("name", t.src.Name),
			slog.Uint64("generation", t.gen),
		)

		c.sink.AuthRequired(t.handle, Challenge{Generation: t.gen})

	default:
		c.finish(t, Result{Kind: Failed, Err: classify(err)})
	}
}

// finish delivers the terminal event and releases the transfer. Called with
// t.mu held and t.done unset.
func (c *Client) finish(t *transfer, r Result) {
	t.done = true
	t.parked = false

	if err := t.file.Close(); err != nil {
		c.logger.Warn("closing upload source",
			slog.String("path", t.src.Path),
			slog.String("error", err.Error()),
		)
	}

	c.mu.Lock()
	delete(c.transfers, t.handle)
	c.mu.Unlock()

	attrs := []any{
		slog.Uint64("handle", uint64(t.handle)),
		slog.String("name", t.src.Name),
		slog.String("result", r.Kind.String()),
	}

	if r.Err != nil {
		attrs = append(attrs, slog.String("error", r.Err.Error()))
	}

	c.logger.Debug("transfer finished", attrs...)

	c.sink.Finished(t.handle, r)
	c.wg.Done()
}
