package config

import (
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_TopLevel(t *testing.T) {
	path := writeTestConfig(t, `
unknown_section = "value"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoad_UnknownKey_InSection(t *testing.T) {
	path := writeTestConfig(t, "[client]\nserver_ulr = \"http://x/api\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), "[client]")
	assert.Contains(t, err.Error(), `did you mean "server_url"`)
}

func TestLoad_UnknownKey_MisspelledSection(t *testing.T) {
	path := writeTestConfig(t, "[clinet]\nserver_url = \"http://x/api\"\nusername = \"a\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "client"`)
	assert.Equal(t, 1, countLines(err.Error()), "an unknown table is reported once")
}

func TestLoad_UnknownKey_InNestedTable(t *testing.T) {
	path := writeTestConfig(t, "[server.s3]\nbuckett = \"x\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[server.s3]")
	assert.Contains(t, err.Error(), `"bucket"`)
}

func TestLoad_UnknownKey_InArrayTable(t *testing.T) {
	path := writeTestConfig(t, "[[server.users]]\nname = \"a\"\nhash = \"x\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[server.users]")
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, `
[logging]
completely_unrelated_key = true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestSplitUnknown(t *testing.T) {
	tests := []struct {
		key     toml.Key
		section string
		field   string
	}{
		{toml.Key{"bogus"}, "", "bogus"},
		{toml.Key{"client", "bogus"}, "client", "bogus"},
		{toml.Key{"clinet", "server_url"}, "", "clinet"},
		{toml.Key{"server", "s3", "bogus"}, "server.s3", "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			section, field := splitUnknown(tt.key)
			assert.Equal(t, tt.section, section)
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"server_ulr", "server_url", 2},
		{"usernme", "username", 1},
		{"completely_different", "xyz", 19},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b))
		})
	}
}

func TestClosestMatch_Found(t *testing.T) {
	known := knownKeys["client"]
	assert.Equal(t, "username", closestMatch("usernme", known))
	assert.Equal(t, "server_url", closestMatch("server_ur", known))
}

func TestClosestMatch_NotFound(t *testing.T) {
	assert.Equal(t, "", closestMatch("completely_unrelated", knownKeys["logging"]))
}

func countLines(s string) int {
	n := 1

	for _, r := range s {
		if r == '\n' {
			n++
		}
	}

	return n
}
