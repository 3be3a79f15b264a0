package auth

import (
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
)

// TokenCache holds the current bearer token. Every Set bumps the
// generation, so a request that failed with generation g can tell whether
// someone else already replaced the token it used.
type TokenCache struct {
	mu     sync.Mutex
	tok    *oauth2.Token
	gen    uint64
	logger *slog.Logger
}

// NewTokenCache returns an empty cache at generation 0.
func NewTokenCache(logger *slog.Logger) *TokenCache {
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenCache{logger: logger}
}

// Token returns the current token and its generation. The token is nil
// when none is held or the held one has expired.
func (c *TokenCache) Token() (*oauth2.Token, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tok != nil && !c.tok.Valid() {
		c.logger.Debug("cached token expired", slog.Uint64("generation", c.gen))
		c.tok = nil
	}

	return c.tok, c.gen
}

// Set stores tok as a new generation and returns it.
func (c *TokenCache) Set(tok *oauth2.Token) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tok = tok
	c.gen++

	c.logger.Debug("token stored",
		slog.Uint64("generation", c.gen),
		slog.Time("expiry", tok.Expiry),
	)

	return c.gen
}

// Invalidate drops the token if it is still generation gen, and reports
// whether the cache has moved past gen (in which case the caller should
// retry with the newer token instead of asking for credentials).
func (c *TokenCache) Invalidate(gen uint64) (superseded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return c.tok != nil
	}

	if c.tok != nil {
		c.logger.Info("discarding rejected token", slog.Uint64("generation", gen))
		c.tok = nil
	}

	return false
}

// Generation returns the current generation.
func (c *TokenCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.gen
}
