package tokenfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testServer = "http://localhost:5000/api"

func validToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: "access-123",
		TokenType:   "Bearer",
		Expiry:      time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	tf, err := Load("/nonexistent/path/token.json")
	assert.Nil(t, tf)
	assert.NoError(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	original := validToken()

	require.NoError(t, Save(path, testServer, original))

	tf, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, tf)
	assert.Equal(t, testServer, tf.Server)
	assert.Equal(t, "access-123", tf.Token.AccessToken)
	assert.Equal(t, "Bearer", tf.Token.TokenType)
	assert.True(t, tf.Token.Expiry.Equal(original.Expiry))
}

func TestLoad_MissingTokenField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":"x"}`), 0o600))

	tf, err := Load(path)
	assert.Nil(t, tf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing token field")
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}

func TestLoadFor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, Save(path, testServer, validToken()))

	tok, err := LoadFor(path, testServer)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "access-123", tok.AccessToken)

	tok, err = LoadFor(path, "https://other.example/api")
	require.NoError(t, err)
	assert.Nil(t, tok, "token from another server must not be reused")
}

func TestLoadFor_Expired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	expired := validToken()
	expired.Expiry = time.Now().Add(-time.Minute)
	require.NoError(t, Save(path, testServer, expired))

	tok, err := LoadFor(path, testServer)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestLoadFor_Missing(t *testing.T) {
	tok, err := LoadFor(filepath.Join(t.TempDir(), "token.json"), testServer)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestSave_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "token.json")

	require.NoError(t, Save(path, testServer, validToken()))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestSave_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, Save(path, testServer, validToken()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestSave_NilToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	require.Error(t, Save(path, testServer, nil))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(filepath.Join(dir, "token.json"), testServer, validToken()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "token.json", entries[0].Name())
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, Save(path, testServer, validToken()))

	removed, err := Remove(path)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = Remove(path)
	require.NoError(t, err)
	assert.False(t, removed)
}
