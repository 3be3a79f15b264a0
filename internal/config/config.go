// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for upload-go. Values resolve through a
// four-layer override chain: defaults -> config file -> environment -> CLI
// flags. The [client] section drives the upload commands and the [server]
// section drives the reference server.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Client  ClientConfig  `toml:"client"`
	Logging LoggingConfig `toml:"logging"`
	Server  ServerConfig  `toml:"server"`
}

// ClientConfig controls how the CLI reaches the upload server.
// server_url includes the API prefix, e.g. "http://localhost:5000/api".
type ClientConfig struct {
	ServerURL       string `toml:"server_url"`
	Username        string `toml:"username"`
	ConnectTimeout  string `toml:"connect_timeout"`
	ResponseTimeout string `toml:"response_timeout"`
}

// LoggingConfig controls log output level and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// ServerConfig configures `upload-go serve`.
type ServerConfig struct {
	ListenAddr    string       `toml:"listen_addr"`
	Storage       string       `toml:"storage"`
	UploadDir     string       `toml:"upload_dir"`
	SigningKey    string       `toml:"signing_key"`
	TokenTTL      string       `toml:"token_ttl"`
	MaxUploadSize string       `toml:"max_upload_size"`
	S3            S3Config     `toml:"s3"`
	Users         []UserConfig `toml:"users"`
}

// S3Config selects the bucket used when storage = "s3". Credentials fall
// back to the AWS default chain when access_key is empty.
type S3Config struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	Prefix    string `toml:"prefix"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

// UserConfig is one account the server accepts. password_hash is a bcrypt
// hash as printed by `upload-go hash-password`.
type UserConfig struct {
	Name         string `toml:"name"`
	PasswordHash string `toml:"password_hash"`
}

// Storage backends.
const (
	StorageFS = "fs"
	StorageS3 = "s3"
)

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty strings mean "not specified".
type CLIOverrides struct {
	ConfigPath string // --config
	ServerURL  string // --server
	Username   string // --user
}

// ConnectTimeoutDuration returns the parsed dial timeout. Validation guarantees the
// string parses; the zero value means no limit.
func (c *ClientConfig) ConnectTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnectTimeout) //nolint:errcheck // validated on load
	return d
}

// ResponseTimeoutDuration returns the parsed response-header timeout.
func (c *ClientConfig) ResponseTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ResponseTimeout) //nolint:errcheck // validated on load
	return d
}

// TokenTTLDuration returns the parsed token lifetime.
func (s *ServerConfig) TokenTTLDuration() time.Duration {
	d, _ := time.ParseDuration(s.TokenTTL) //nolint:errcheck // validated on load
	return d
}

// MaxUploadBytes returns max_upload_size in bytes; 0 means unlimited.
func (s *ServerConfig) MaxUploadBytes() int64 {
	n, _ := ParseSize(s.MaxUploadSize) //nolint:errcheck // validated on load
	return n
}

// UserMap returns the configured users as name -> bcrypt hash.
func (s *ServerConfig) UserMap() map[string]string {
	users := make(map[string]string, len(s.Users))
	for _, u := range s.Users {
		users[u.Name] = u.PasswordHash
	}

	return users
}
