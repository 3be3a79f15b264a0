// Package server is the reference upload server. It implements the wire
// contract the client speaks: token exchange, listing, multipart upload and
// a websocket feed of upload events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/upload-go/internal/api"
	"github.com/tonimelisma/upload-go/internal/storage"
)

// shutdownTimeout bounds how long Run waits for in-flight requests.
const shutdownTimeout = 10 * time.Second

const readHeaderTimeout = 10 * time.Second

// Server serves the upload API from a Store.
type Server struct {
	auth          *Authenticator
	store         storage.Store
	hub           *hub
	maxUploadSize int64
	logger        *slog.Logger
}

// New creates a server. maxUploadSize <= 0 means no limit.
func New(auth *Authenticator, store storage.Store, maxUploadSize int64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		auth:          auth,
		store:         store,
		hub:           newHub(),
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Handler returns the HTTP handler with all routes under /api.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/token", s.requirePassword(s.handleToken))
	mux.HandleFunc("GET /api/ls", s.requireToken(s.handleList))
	mux.HandleFunc("POST /api/upload", s.requireToken(s.handleUpload))
	mux.HandleFunc("GET /api/events", s.requireToken(s.handleEvents))

	return s.logRequests(mux)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	token, exp, err := s.auth.IssueToken(identity)
	if err != nil {
		s.logger.Error("issuing token", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	s.logger.Info("token issued", slog.String("identity", identity), slog.Time("expiry", exp))

	writeJSON(w, http.StatusOK, api.TokenResponse{
		Token:     token,
		ExpiresIn: int64(s.auth.TTL() / time.Second),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("listing files", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, api.ListResponse{Files: names})
}

// handleUpload streams the first part named "file" into the store. Other
// parts are skipped. A body without that part is answered with 501.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		s.logger.Info("upload without multipart body", slog.String("error", err.Error()))
		http.Error(w, "file part missing", http.StatusNotImplemented)

		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.logger.Info("upload without file part")
			http.Error(w, "file part missing", http.StatusNotImplemented)

			return
		}

		if err != nil {
			s.uploadError(w, err)
			return
		}

		if part.FormName() != api.FilePartName {
			part.Close()
			continue
		}

		name, err := storage.SanitizeName(part.FileName())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		n, err := s.store.Put(r.Context(), name, part, part.Header.Get("Content-Type"))
		if err != nil {
			s.uploadError(w, err)
			return
		}

		s.logger.Info("file uploaded",
			slog.String("identity", identityFrom(r.Context())),
			slog.String("name", name),
			slog.Int64("size", n),
		)

		s.hub.publish(api.Event{Type: api.EventUploaded, Name: name})
		w.WriteHeader(http.StatusCreated)

		return
	}
}

func (s *Server) uploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		http.Error(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
	case errors.Is(err, storage.ErrInvalidName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("storing upload", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client gone; nothing to report
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listening on %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server listening", slog.String("addr", ln.Addr().String()))

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: serving: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		s.logger.Info("server shutting down")

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
