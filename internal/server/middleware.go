package server

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

type ctxKey struct{}

func withIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

func identityFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

const realm = `realm="upload-go"`

// requireToken admits requests carrying a valid bearer token. For older
// clients a token sent as the Basic username is accepted too.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var token string

		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		} else if user, _, ok := r.BasicAuth(); ok {
			token = user
		}

		if token == "" {
			s.challenge(w, "Bearer", "missing token")
			return
		}

		identity, err := s.auth.Verify(token)
		if err != nil {
			s.logger.Debug("token rejected",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			s.challenge(w, "Bearer", "invalid token")

			return
		}

		next(w, r.WithContext(withIdentity(r.Context(), identity)))
	}
}

// requirePassword admits requests with valid Basic credentials, or a still
// valid token in the username slot so a client can renew without the
// password.
func (s *Server) requirePassword(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			s.challenge(w, "Basic", "missing credentials")
			return
		}

		if identity, err := s.auth.Verify(user); err == nil {
			next(w, r.WithContext(withIdentity(r.Context(), identity)))
			return
		}

		if err := s.auth.CheckPassword(user, pass); err != nil {
			s.logger.Info("password rejected", slog.String("identity", user))
			s.challenge(w, "Basic", "bad credentials")

			return
		}

		next(w, r.WithContext(withIdentity(r.Context(), user)))
	}
}

func (s *Server) challenge(w http.ResponseWriter, scheme, msg string) {
	w.Header().Set("WWW-Authenticate", scheme+" "+realm)
	http.Error(w, msg, http.StatusUnauthorized)
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}

	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(p []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}

	n, err := rec.ResponseWriter.Write(p)
	rec.bytes += int64(n)

	return n, err
}

// Hijack lets the websocket handler take over the connection.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	rec.status = http.StatusSwitchingProtocols
	return http.NewResponseController(rec.ResponseWriter).Hijack()
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// logRequests writes one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}

		s.logger.Log(r.Context(), level, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int64("bytes", rec.bytes),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("remote", r.RemoteAddr),
		)
	})
}
