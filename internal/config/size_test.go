package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"", 0},
		{"0", 0},
		{"unlimited", 0},
		{"Unlimited", 0},
		{"1048576", 1_048_576},
		{"100B", 100},
		{"1KB", 1000},
		{"1KiB", 1024},
		{"1.5MiB", 1_572_864},
		{"500 MB", 500_000_000},
		{"1GiB", 1_073_741_824},
		{"2gb", 2_000_000_000},
		{"1TB", 1_000_000_000_000},
		{"  10MiB  ", 10_485_760},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize_Rejects(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{"abc", "invalid size"},
		{"MB", "invalid size"},
		{"-1", "must be non-negative"},
		{"-5MB", "must be non-negative"},
		{"-1GiB", "must be non-negative"},
		{"99999999TiB", "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseSize(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestMaxUploadBytes_Keyword(t *testing.T) {
	s := &ServerConfig{MaxUploadSize: "2MiB"}
	assert.Equal(t, int64(2<<20), s.MaxUploadBytes())

	s.MaxUploadSize = "unlimited"
	assert.Zero(t, s.MaxUploadBytes())
}
