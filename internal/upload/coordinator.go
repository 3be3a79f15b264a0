// Package upload is the entry point of the upload job manager. The
// Coordinator owns the job table, the transfer client and the token cache,
// turns transfer events into job status changes and resolves auth
// challenges through an auth.Bridge without blocking other jobs.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/upload-go/internal/api"
	"github.com/tonimelisma/upload-go/internal/auth"
	"github.com/tonimelisma/upload-go/internal/jobs"
	"github.com/tonimelisma/upload-go/internal/transfer"
)

// API is the server surface the coordinator uses. Satisfied by *api.Client.
type API interface {
	transfer.Uploader
	FetchToken(ctx context.Context, identity, secret string) (*oauth2.Token, error)
	ListFiles(ctx context.Context, tok *oauth2.Token) ([]string, error)
	WatchUploads(ctx context.Context, tok *oauth2.Token, fn func(api.Event)) error
}

// Coordinator manages concurrent upload jobs.
type Coordinator struct {
	api       API
	table     *jobs.Table
	transfers *transfer.Client
	tokens    *auth.TokenCache
	bridge    *auth.Bridge
	logger    *slog.Logger

	// ctx bounds challenge handling; Close cancels it.
	ctx  context.Context
	stop context.CancelFunc

	// mu guards closed and orders challenges.Add before Close waits.
	mu         sync.Mutex
	closed     bool
	challenges sync.WaitGroup
}

// New creates a coordinator. Credential challenges are published on bridge.
func New(client API, bridge *auth.Bridge, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := context.WithCancel(context.Background())

	c := &Coordinator{
		api:    client,
		table:  jobs.NewTable(logger),
		tokens: auth.NewTokenCache(logger),
		bridge: bridge,
		logger: logger,
		ctx:    ctx,
		stop:   stop,
	}

	c.transfers = transfer.NewClient(client, eventSink{c}, logger)

	return c
}

// Table returns the job table for presentation.
func (c *Coordinator) Table() *jobs.Table {
	return c.table
}

// Login exchanges cred for a token up front, so the first requests do not
// have to be challenged.
func (c *Coordinator) Login(ctx context.Context, cred auth.Credential) error {
	tok, err := c.api.FetchToken(ctx, cred.Identity, cred.Secret)
	if err != nil {
		return authFailure(err)
	}

	c.tokens.Set(tok)

	return nil
}

// Resume seeds the token cache with a token saved by an earlier run. An
// expired token is ignored. A rejected one is handled like any other 401.
func (c *Coordinator) Resume(tok *oauth2.Token) bool {
	if !tok.Valid() {
		return false
	}

	c.tokens.Set(tok)

	return true
}

// Token returns the token currently held, or nil.
func (c *Coordinator) Token() *oauth2.Token {
	tok, _ := c.tokens.Token()
	return tok
}

// StartUpload opens path and starts uploading it. An empty path is
// ErrInvalidInput; a file that cannot be opened is returned as
// transfer.ErrFileUnreadable. In both cases no job is created.
func (c *Coordinator) StartUpload(path string) (uuid.UUID, error) {
	if strings.TrimSpace(path) == "" {
		return uuid.Nil, fmt.Errorf("%w: empty path", ErrInvalidInput)
	}

	h, src, err := c.transfers.Open(path)
	if err != nil {
		return uuid.Nil, err
	}

	job := jobs.NewJob(src, h)
	c.table.Append(job)

	tok, gen := c.tokens.Token()
	if err := c.transfers.Start(h, tok, gen); err != nil {
		// Canceled between Append and Start; the row already shows it.
		c.logger.Debug("upload ended before start",
			slog.String("job", job.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	c.logger.Info("upload started",
		slog.String("job", job.ID.String()),
		slog.String("name", job.DisplayName),
		slog.Int64("size", job.Size),
	)

	return job.ID, nil
}

// CancelUpload cancels the job's transfer. Canceling a finished job is a
// no-op; the Canceled status arrives asynchronously.
func (c *Coordinator) CancelUpload(id uuid.UUID) error {
	job, _, ok := c.table.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	if job.Status.IsTerminal() {
		return nil
	}

	c.transfers.Cancel(job.Handle)

	return nil
}

// CancelAll cancels every live job and returns how many were canceled.
func (c *Coordinator) CancelAll() int {
	return c.transfers.CancelAll()
}

// Remove cancels the job if it is still live and deletes its row.
func (c *Coordinator) Remove(id uuid.UUID) error {
	job, _, ok := c.table.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	if !job.Status.IsTerminal() {
		c.transfers.Cancel(job.Handle)
	}

	if err := c.table.RemoveID(id); err != nil {
		return fmt.Errorf("%w: %w", ErrJobNotFound, err)
	}

	return nil
}

// Wait blocks until every job has reached a terminal status or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	return c.transfers.Wait(ctx)
}

// Close cancels all live jobs and declines outstanding credential requests.
// A challenge raised after Close fails its upload without asking for
// credentials.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.stop()
	c.transfers.CancelAll()
	c.challenges.Wait()
}

// ListFiles returns the names stored on the server, resolving one auth
// challenge if the current token is rejected.
func (c *Coordinator) ListFiles(ctx context.Context) ([]string, error) {
	var files []string

	err := c.withToken(ctx, "file listing", func(tok *oauth2.Token) error {
		var err error
		files, err = c.api.ListFiles(ctx, tok)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upload: listing files: %w", err)
	}

	return files, nil
}

// WatchUploads streams upload events from the server until ctx is done.
func (c *Coordinator) WatchUploads(ctx context.Context, fn func(api.Event)) error {
	return c.withToken(ctx, "upload events", func(tok *oauth2.Token) error {
		return c.api.WatchUploads(ctx, tok, fn)
	})
}

// withToken runs call with the cached token and, on a 401, once more with
// a refreshed one. A second 401 is transfer.ErrAuth.
func (c *Coordinator) withToken(ctx context.Context, subject string, call func(*oauth2.Token) error) error {
	tok, gen := c.tokens.Token()

	err := call(tok)
	if err == nil || !errors.Is(err, api.ErrUnauthorized) {
		return err
	}

	tok, _, err = c.refreshToken(ctx, gen, subject)
	if err != nil {
		return err
	}

	if err := call(tok); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return authFailure(err)
		}

		return err
	}

	return nil
}

// refreshToken produces a token newer than generation failed. When another
// request already replaced that token it is reused without asking for
// credentials, including when the replacement lands while this request is
// still queued behind another prompt. The new token is stored before the
// challenge settles, so the answerer sees it when it checks the next one.
func (c *Coordinator) refreshToken(ctx context.Context, failed uint64, subject string) (*oauth2.Token, uint64, error) {
	for {
		if c.tokens.Invalidate(failed) {
			if tok, gen := c.tokens.Token(); tok != nil {
				c.logger.Debug("reusing token refreshed by another request",
					slog.String("subject", subject),
					slog.Uint64("generation", gen),
				)

				return tok, gen, nil
			}
		}

		if c.bridge == nil {
			return nil, 0, fmt.Errorf("%w: no credential provider", transfer.ErrAuth)
		}

		var (
			tok *oauth2.Token
			gen uint64
		)

		err := c.bridge.Exchange(ctx, auth.ChallengeInfo{Subject: subject},
			func() bool { return !c.supersedes(failed) },
			func(cred auth.Credential) error {
				fresh, err := c.api.FetchToken(ctx, cred.Identity, cred.Secret)
				if err != nil {
					c.logger.Warn("credential exchange failed",
						slog.String("identity", cred.Identity),
						slog.String("error", err.Error()),
					)

					return authFailure(err)
				}

				tok, gen = fresh, c.tokens.Set(fresh)

				return nil
			},
		)

		switch {
		case errors.Is(err, auth.ErrNotNeeded):
			continue
		case errors.Is(err, auth.ErrDeclined):
			return nil, 0, fmt.Errorf("%w: %w", transfer.ErrAuth, err)
		case err != nil:
			return nil, 0, err
		}

		return tok, gen, nil
	}
}

// supersedes reports whether the cache holds a usable token newer than
// generation failed.
func (c *Coordinator) supersedes(failed uint64) bool {
	tok, gen := c.tokens.Token()
	return tok != nil && gen != failed
}

// handleChallenge resolves one transfer's auth challenge and either
// resubmits it or fails it. Runs on its own goroutine.
func (c *Coordinator) handleChallenge(h transfer.Handle, ch transfer.Challenge) {
	defer c.challenges.Done()

	subject := fmt.Sprintf("upload %d", h)
	if job, _, ok := c.table.LookupHandle(h); ok {
		subject = job.DisplayName
	}

	tok, gen, err := c.refreshToken(c.ctx, ch.Generation, subject)
	if err != nil {
		if failErr := c.transfers.Fail(h, err); failErr != nil {
			c.logger.Debug("challenged upload already ended",
				slog.Uint64("handle", uint64(h)),
				slog.String("error", failErr.Error()),
			)
		}

		return
	}

	if err := c.transfers.Retry(h, tok, gen); err != nil {
		c.logger.Debug("challenged upload already ended",
			slog.Uint64("handle", uint64(h)),
			slog.String("error", err.Error()),
		)
	}
}

// failClosed ends a transfer challenged after Close.
func (c *Coordinator) failClosed(h transfer.Handle) {
	if err := c.transfers.Fail(h, fmt.Errorf("%w: %w", transfer.ErrAuth, ErrClosed)); err != nil {
		c.logger.Debug("challenged upload already ended",
			slog.Uint64("handle", uint64(h)),
			slog.String("error", err.Error()),
		)
	}
}

// eventSink applies transfer events to the job table.
type eventSink struct {
	c *Coordinator
}

func (s eventSink) Progress(h transfer.Handle, sent, total int64) {
	s.c.table.UpdateStatus(h, jobs.InProgress(jobs.Percent(sent, total)))
}

// AuthRequired runs with the transfer's lock held, so the challenge is
// handled on another goroutine.
func (s eventSink) AuthRequired(h transfer.Handle, ch transfer.Challenge) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if s.c.closed {
		go s.c.failClosed(h)
		return
	}

	s.c.challenges.Add(1)

	go s.c.handleChallenge(h, ch)
}

func (s eventSink) Finished(h transfer.Handle, r transfer.Result) {
	var status jobs.Status

	switch r.Kind {
	case transfer.Success:
		status = jobs.Finished()
	case transfer.Canceled:
		status = jobs.Canceled()
	default:
		status = jobs.Failed(r.Err)

		s.c.logger.Warn("upload failed",
			slog.Uint64("handle", uint64(h)),
			slog.Any("error", r.Err),
		)
	}

	s.c.table.UpdateStatus(h, status)
}
