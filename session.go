package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/upload-go/internal/api"
	"github.com/tonimelisma/upload-go/internal/auth"
	"github.com/tonimelisma/upload-go/internal/config"
	"github.com/tonimelisma/upload-go/internal/tokenfile"
	"github.com/tonimelisma/upload-go/internal/upload"
)

// tokenPath locates the saved login. Tests point it at a temp dir.
var tokenPath = config.DefaultTokenPath

// newHTTPClient builds the client transport from the [client] timeouts.
// There is no overall request timeout because an upload takes as long as
// the file needs.
func newHTTPClient(c *config.ClientConfig) *http.Client {
	dialer := &net.Dialer{Timeout: c.ConnectTimeoutDuration()}

	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // stdlib guarantees the type
	transport.DialContext = dialer.DialContext
	transport.ResponseHeaderTimeout = c.ResponseTimeoutDuration()

	return &http.Client{Transport: transport}
}

// openSession wires the API client, credential bridge and coordinator for a
// client command. The returned close function cancels outstanding uploads,
// stops answering challenges and saves the token for the next run. When a
// non-interactive credential is configured it logs in up front so the first
// requests are not challenged; otherwise a saved token is reused. scr, when
// not nil, is suspended while a credential prompt is shown.
func openSession(ctx context.Context, cc *CLIContext, scr screen) (*upload.Coordinator, func(), error) {
	client := api.NewClient(cc.Cfg.Client.ServerURL, newHTTPClient(&cc.Cfg.Client), cc.Logger)
	bridge := auth.NewBridge(cc.Logger)
	coord := upload.New(client, bridge, cc.Logger)

	// Challenges outlive the command context so a parked upload can still be
	// declined cleanly while put drains after Ctrl-C.
	serveCtx, stopServe := context.WithCancel(context.WithoutCancel(ctx))

	go func() {
		if err := bridge.Serve(serveCtx, credentialProvider(cc, scr)); err != nil {
			cc.Logger.Debug("credential bridge stopped", slog.String("error", err.Error()))
		}
	}()

	server := cc.Cfg.Client.ServerURL
	saved := resumeToken(coord, server, cc.Logger)

	closeFn := func() {
		coord.Close()
		stopServe()
		saveToken(coord, server, saved, cc.Logger)
	}

	if cred, ok := envCredential(cc); ok {
		if err := coord.Login(ctx, cred); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("logging in as %s: %w", cred.Identity, err)
		}

		cc.Logger.Debug("logged in", slog.Any("credential", cred))
	}

	return coord, closeFn, nil
}

// resumeToken seeds coord with the saved token for server, if any, and
// returns it.
func resumeToken(coord *upload.Coordinator, server string, logger *slog.Logger) *oauth2.Token {
	path := tokenPath()
	if path == "" {
		return nil
	}

	tok, err := tokenfile.LoadFor(path, server)
	if err != nil {
		logger.Warn("ignoring saved token", slog.String("error", err.Error()))
		return nil
	}

	if tok == nil || !coord.Resume(tok) {
		return nil
	}

	logger.Debug("reusing saved token", slog.String("path", path))

	return tok
}

// saveToken writes the coordinator's current token when it differs from
// the one loaded at start. A loaded token the server since rejected is
// removed.
func saveToken(coord *upload.Coordinator, server string, loaded *oauth2.Token, logger *slog.Logger) {
	path := tokenPath()
	tok := coord.Token()

	if path == "" || tok == loaded {
		return
	}

	if tok == nil {
		if _, err := tokenfile.Remove(path); err != nil {
			logger.Warn("removing stale token", slog.String("error", err.Error()))
		}

		return
	}

	if err := tokenfile.Save(path, server, tok); err != nil {
		logger.Warn("saving token", slog.String("error", err.Error()))
		return
	}

	logger.Debug("token saved", slog.String("path", path))
}
