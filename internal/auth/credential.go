// Package auth holds the client-side authentication state: the cached
// bearer token and the bridge that turns an auth challenge into a request
// for credentials from whoever can supply them.
package auth

import (
	"log/slog"
)

// Credential is an identity/secret pair. It is held only in memory and
// never written anywhere; String and LogValue keep the secret out of logs.
type Credential struct {
	Identity string
	Secret   string
}

func (c Credential) String() string {
	return c.Identity + ":[redacted]"
}

// LogValue implements slog.LogValuer.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("identity", c.Identity),
		slog.String("secret", "[redacted]"),
	)
}
