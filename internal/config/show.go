package config

import (
	"fmt"
	"io"
)

// redacted replaces secret values in rendered output.
const redacted = "[redacted]"

// RenderEffective writes the resolved configuration as a human-readable
// summary to w. This powers "config show". Secrets are never printed, only
// whether they are set.
func RenderEffective(cfg *Config, path string, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", path)

	renderClientSection(ew, &cfg.Client)
	renderLoggingSection(ew, &cfg.Logging)
	renderServerSection(ew, &cfg.Server)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderClientSection(ew *errWriter, c *ClientConfig) {
	ew.printf("[client]\n")
	ew.printf("  server_url       = %q\n", c.ServerURL)

	if c.Username != "" {
		ew.printf("  username         = %q\n", c.Username)
	}

	ew.printf("  connect_timeout  = %q\n", c.ConnectTimeout)
	ew.printf("  response_timeout = %q\n", c.ResponseTimeout)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)
	ew.printf("  log_format = %q\n", l.LogFormat)
	ew.printf("\n")
}

func renderServerSection(ew *errWriter, s *ServerConfig) {
	ew.printf("[server]\n")
	ew.printf("  listen_addr     = %q\n", s.ListenAddr)
	ew.printf("  storage         = %q\n", s.Storage)

	if s.Storage == StorageFS {
		ew.printf("  upload_dir      = %q\n", s.UploadDir)
	}

	ew.printf("  signing_key     = %q\n", secret(s.SigningKey))
	ew.printf("  token_ttl       = %q\n", s.TokenTTL)
	ew.printf("  max_upload_size = %q\n", s.MaxUploadSize)

	if s.Storage == StorageS3 {
		ew.printf("\n[server.s3]\n")
		ew.printf("  bucket     = %q\n", s.S3.Bucket)
		ew.printf("  region     = %q\n", s.S3.Region)

		if s.S3.Endpoint != "" {
			ew.printf("  endpoint   = %q\n", s.S3.Endpoint)
		}

		if s.S3.Prefix != "" {
			ew.printf("  prefix     = %q\n", s.S3.Prefix)
		}

		if s.S3.AccessKey != "" {
			ew.printf("  access_key = %q\n", s.S3.AccessKey)
			ew.printf("  secret_key = %q\n", secret(s.S3.SecretKey))
		}
	}

	for _, u := range s.Users {
		ew.printf("\n[[server.users]]\n")
		ew.printf("  name          = %q\n", u.Name)
		ew.printf("  password_hash = %q\n", secret(u.PasswordHash))
	}
}

func secret(s string) string {
	if s == "" {
		return ""
	}

	return redacted
}
