package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Validation range constants.
const (
	minConnectTimeout  = 1 * time.Second
	minResponseTimeout = 1 * time.Second
	minTokenTTL        = 10 * time.Second
	minSigningKeyBytes = 16
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateClient(&cfg.Client)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateServer(&cfg.Server)...)

	return errors.Join(errs...)
}

// ValidateServe checks what `upload-go serve` needs beyond Validate: a
// signing key, at least one user and a location to store files. Client
// commands never call it, so a client-only config file stays valid.
func ValidateServe(s *ServerConfig) error {
	var errs []error

	if len(s.SigningKey) < minSigningKeyBytes {
		errs = append(errs, fmt.Errorf("server.signing_key: must be at least %d bytes (or set %s)",
			minSigningKeyBytes, EnvSigningKey))
	}

	if len(s.Users) == 0 {
		errs = append(errs, errors.New("server.users: at least one user is required"))
	}

	switch s.Storage {
	case StorageFS:
		if s.UploadDir == "" {
			errs = append(errs, errors.New("server.upload_dir: must not be empty"))
		}
	case StorageS3:
		if s.S3.Bucket == "" {
			errs = append(errs, errors.New("server.s3.bucket: required when storage is \"s3\""))
		}
	}

	return errors.Join(errs...)
}

func validateClient(c *ClientConfig) []error {
	var errs []error

	errs = append(errs, validateServerURL(c.ServerURL)...)
	errs = append(errs, validateDurationMin("client.connect_timeout", c.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("client.response_timeout", c.ResponseTimeout, minResponseTimeout)...)

	return errs
}

func validateServerURL(raw string) []error {
	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("client.server_url: %w", err)}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return []error{fmt.Errorf("client.server_url: scheme must be http or https, got %q", raw)}
	}

	if u.Host == "" {
		return []error{fmt.Errorf("client.server_url: missing host in %q", raw)}
	}

	return nil
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	if _, _, err := net.SplitHostPort(s.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("server.listen_addr: %w", err))
	}

	if s.Storage != StorageFS && s.Storage != StorageS3 {
		errs = append(errs, fmt.Errorf("server.storage: must be %q or %q, got %q", StorageFS, StorageS3, s.Storage))
	}

	errs = append(errs, validateDurationMin("server.token_ttl", s.TokenTTL, minTokenTTL)...)

	if _, err := ParseSize(s.MaxUploadSize); err != nil {
		errs = append(errs, fmt.Errorf("server.max_upload_size: %w", err))
	}

	if (s.S3.AccessKey == "") != (s.S3.SecretKey == "") {
		errs = append(errs, errors.New("server.s3: access_key and secret_key must be set together"))
	}

	errs = append(errs, validateUsers(s.Users)...)

	return errs
}

func validateUsers(users []UserConfig) []error {
	var errs []error

	seen := make(map[string]bool, len(users))

	for i, u := range users {
		if u.Name == "" {
			errs = append(errs, fmt.Errorf("server.users[%d]: name must not be empty", i))
			continue
		}

		if seen[u.Name] {
			errs = append(errs, fmt.Errorf("server.users[%d]: duplicate user %q", i, u.Name))
		}

		seen[u.Name] = true

		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			errs = append(errs, fmt.Errorf("server.users[%d]: password_hash for %q is not a bcrypt hash: %w",
				i, u.Name, err))
		}
	}

	return errs
}

// validateDuration checks that a duration string is valid and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("logging.log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}
