package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// TokenResponse is the JSON body of GET /token. ExpiresIn is optional;
// older servers send only the token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// ListResponse is the JSON body of GET /ls.
type ListResponse struct {
	Files []string `json:"files"`
}

// FetchToken exchanges an identity and secret for a bearer token using HTTP
// Basic authentication. Rejected credentials yield ErrUnauthorized.
func (c *Client) FetchToken(ctx context.Context, identity, secret string) (*oauth2.Token, error) {
	c.logger.Debug("requesting token", slog.String("identity", identity))

	resp, err := c.get(ctx, "/token", func(req *http.Request) {
		req.SetBasicAuth(identity, secret)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tr TokenResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&tr); decErr != nil {
		return nil, fmt.Errorf("api: decoding token response: %w", decErr)
	}

	if tr.Token == "" {
		return nil, fmt.Errorf("api: token response has no token")
	}

	tok := &oauth2.Token{
		AccessToken: tr.Token,
		TokenType:   "Bearer",
	}

	if tr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	c.logger.Info("token acquired",
		slog.String("identity", identity),
		slog.Time("expiry", tok.Expiry),
	)

	return tok, nil
}

// ListFiles returns the names of the files stored on the server.
func (c *Client) ListFiles(ctx context.Context, tok *oauth2.Token) ([]string, error) {
	resp, err := c.get(ctx, "/ls", bearer(tok))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lr ListResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&lr); decErr != nil {
		return nil, fmt.Errorf("api: decoding listing: %w", decErr)
	}

	if lr.Files == nil {
		lr.Files = []string{}
	}

	return lr.Files, nil
}
