package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig     = "UPLOAD_GO_CONFIG"
	EnvServerURL  = "UPLOAD_GO_SERVER_URL"
	EnvUser       = "UPLOAD_GO_USER"
	EnvPassword   = "UPLOAD_GO_PASSWORD"
	EnvSigningKey = "UPLOAD_GO_SIGNING_KEY"
)

// EnvOverrides holds values derived from environment variables.
// Password is never written into a Config; callers hand it to the
// credential provider directly.
type EnvOverrides struct {
	ConfigPath string // UPLOAD_GO_CONFIG: override config file path
	ServerURL  string // UPLOAD_GO_SERVER_URL: client server_url
	User       string // UPLOAD_GO_USER: client username
	Password   string // UPLOAD_GO_PASSWORD: non-interactive password
	SigningKey string // UPLOAD_GO_SIGNING_KEY: server signing_key
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		ServerURL:  os.Getenv(EnvServerURL),
		User:       os.Getenv(EnvUser),
		Password:   os.Getenv(EnvPassword),
		SigningKey: os.Getenv(EnvSigningKey),
	}
}
