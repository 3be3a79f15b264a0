package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func testHash(t *testing.T) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	return string(hash)
}

// clearEnv blanks every override variable so the developer's environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{EnvConfig, EnvServerURL, EnvUser, EnvPassword, EnvSigningKey} {
		t.Setenv(name, "")
	}
}

func TestLoad_ValidFullConfig(t *testing.T) {
	hash := testHash(t)

	path := writeTestConfig(t, fmt.Sprintf(`
[client]
server_url = "https://files.example.com/api"
username = "alice"
connect_timeout = "5s"
response_timeout = "2m"

[logging]
log_level = "debug"
log_format = "json"

[server]
listen_addr = "127.0.0.1:8080"
storage = "s3"
signing_key = "0123456789abcdef0123"
token_ttl = "15m"
max_upload_size = "100MiB"

[server.s3]
bucket = "uploads"
region = "eu-west-1"
endpoint = "http://localhost:9000"
prefix = "incoming"
access_key = "AKID"
secret_key = "SECRET"

[[server.users]]
name = "alice"
password_hash = %q

[[server.users]]
name = "bob"
password_hash = %q
`, hash, hash))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://files.example.com/api", cfg.Client.ServerURL)
	assert.Equal(t, "alice", cfg.Client.Username)
	assert.Equal(t, "5s", cfg.Client.ConnectTimeout)
	assert.Equal(t, "2m", cfg.Client.ResponseTimeout)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "json", cfg.Logging.LogFormat)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.ListenAddr)
	assert.Equal(t, StorageS3, cfg.Server.Storage)
	assert.Equal(t, int64(100<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, S3Config{
		Bucket:    "uploads",
		Region:    "eu-west-1",
		Endpoint:  "http://localhost:9000",
		Prefix:    "incoming",
		AccessKey: "AKID",
		SecretKey: "SECRET",
	}, cfg.Server.S3)
	require.Len(t, cfg.Server.Users, 2)
	assert.Equal(t, "bob", cfg.Server.Users[1].Name)
	assert.NoError(t, ValidateServe(&cfg.Server))
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, `
[client]
username = "alice"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Client.Username)
	assert.Equal(t, defaultServerURL, cfg.Client.ServerURL)
	assert.Equal(t, defaultLogLevel, cfg.Logging.LogLevel)
	assert.Equal(t, defaultListenAddr, cfg.Server.ListenAddr)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, "[client\nserver_url = ")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_ValidationErrors(t *testing.T) {
	path := writeTestConfig(t, `
[logging]
log_level = "chatty"

[server]
storage = "tape"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "server.storage")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_Precedence(t *testing.T) {
	clearEnv(t)

	path := writeTestConfig(t, `
[client]
server_url = "http://file.example/api"
username = "file-user"
`)

	env := EnvOverrides{
		ConfigPath: path,
		ServerURL:  "http://env.example/api",
		User:       "env-user",
		SigningKey: "env-signing-key-0123",
	}

	cfg, usedPath, err := Resolve(env, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, path, usedPath)
	assert.Equal(t, "http://env.example/api", cfg.Client.ServerURL)
	assert.Equal(t, "env-user", cfg.Client.Username)
	assert.Equal(t, "env-signing-key-0123", cfg.Server.SigningKey)

	cfg, _, err = Resolve(env, CLIOverrides{
		ServerURL: "http://cli.example/api",
		Username:  "cli-user",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://cli.example/api", cfg.Client.ServerURL)
	assert.Equal(t, "cli-user", cfg.Client.Username)
}

func TestResolve_CLIConfigPathWins(t *testing.T) {
	clearEnv(t)

	envPath := writeTestConfig(t, "[client]\nusername = \"from-env-file\"\n")
	cliPath := writeTestConfig(t, "[client]\nusername = \"from-cli-file\"\n")

	cfg, usedPath, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath})
	require.NoError(t, err)
	assert.Equal(t, cliPath, usedPath)
	assert.Equal(t, "from-cli-file", cfg.Client.Username)
}

func TestResolve_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Resolve(EnvOverrides{}, CLIOverrides{
		ConfigPath: filepath.Join(t.TempDir(), "none.toml"),
	})
	require.NoError(t, err)
	assert.Equal(t, defaultServerURL, cfg.Client.ServerURL)
}

func TestResolve_BadOverrideRejected(t *testing.T) {
	clearEnv(t)

	_, _, err := Resolve(EnvOverrides{}, CLIOverrides{
		ConfigPath: filepath.Join(t.TempDir(), "none.toml"),
		ServerURL:  "ftp://example.com",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_url")
}
