package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/upload-go/internal/auth"
	"github.com/tonimelisma/upload-go/internal/config"
)

// stubPasswords makes readPassword return the given answers in order.
func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()

	old := readPassword
	readPassword = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no more answers")
		}

		next := answers[0]
		answers = answers[1:]

		return []byte(next), nil
	}

	t.Cleanup(func() { readPassword = old })
}

func TestPrompter_AsksForUserAndPassword(t *testing.T) {
	stubPasswords(t, "s3cret")

	var out bytes.Buffer
	p := newPrompter(strings.NewReader("alice\n"), &out, 0, "")

	cred, err := p.Credentials(context.Background(), auth.ChallengeInfo{Subject: "report.pdf"})
	require.NoError(t, err)
	assert.Equal(t, auth.Credential{Identity: "alice", Secret: "s3cret"}, cred)
	assert.Contains(t, out.String(), "Authentication required for report.pdf")
	assert.Contains(t, out.String(), "Username: ")
}

func TestPrompter_DefaultUsernameRemembered(t *testing.T) {
	stubPasswords(t, "one", "two")

	var out bytes.Buffer
	p := newPrompter(strings.NewReader("\nbob\n"), &out, 0, "alice")

	cred, err := p.Credentials(context.Background(), auth.ChallengeInfo{Subject: "a"})
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Identity)
	assert.Contains(t, out.String(), "Username [alice]: ")

	cred, err = p.Credentials(context.Background(), auth.ChallengeInfo{Subject: "b"})
	require.NoError(t, err)
	assert.Equal(t, "bob", cred.Identity)
	assert.Equal(t, "two", cred.Secret)
	assert.Equal(t, "bob", p.username)
}

func TestPrompter_EmptyUsername(t *testing.T) {
	stubPasswords(t, "unused")

	p := newPrompter(strings.NewReader("\n"), &bytes.Buffer{}, 0, "")

	_, err := p.Credentials(context.Background(), auth.ChallengeInfo{Subject: "a"})
	assert.ErrorIs(t, err, errEmptyUsername)
}

func TestPrompter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	p := newPrompter(strings.NewReader("alice\n"), &out, 0, "")

	_, err := p.Credentials(ctx, auth.ChallengeInfo{Subject: "a"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestPrompter_PasswordReadError(t *testing.T) {
	stubPasswords(t)

	p := newPrompter(strings.NewReader("alice\n"), &bytes.Buffer{}, 0, "")

	_, err := p.Credentials(context.Background(), auth.ChallengeInfo{Subject: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading password")
}

func TestEnvCredential(t *testing.T) {
	cc := &CLIContext{Cfg: config.DefaultConfig()}

	_, ok := envCredential(cc)
	assert.False(t, ok)

	cc.Env.Password = "pw"
	_, ok = envCredential(cc)
	assert.False(t, ok, "a password without a user name is not a credential")

	cc.Cfg.Client.Username = "alice"
	cred, ok := envCredential(cc)
	require.True(t, ok)
	assert.Equal(t, auth.Credential{Identity: "alice", Secret: "pw"}, cred)
}

func TestReadNewPassword_Pipe(t *testing.T) {
	got, err := readNewPassword(strings.NewReader("hunter2\r\nignored\n"), false, 0, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestReadNewPassword_PipeWithoutNewline(t *testing.T) {
	got, err := readNewPassword(strings.NewReader("hunter2"), false, 0, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestReadNewPassword_Interactive(t *testing.T) {
	stubPasswords(t, "pw", "pw")

	var out bytes.Buffer

	got, err := readNewPassword(strings.NewReader(""), true, 0, &out)
	require.NoError(t, err)
	assert.Equal(t, "pw", got)
	assert.Contains(t, out.String(), "Confirm password: ")
}

func TestReadNewPassword_Mismatch(t *testing.T) {
	stubPasswords(t, "pw", "other")

	_, err := readNewPassword(strings.NewReader(""), true, 0, &bytes.Buffer{})
	assert.ErrorIs(t, err, errPasswordMismatch)
}

type recordingScreen struct {
	calls []string
}

func (s *recordingScreen) Suspend() { s.calls = append(s.calls, "suspend") }
func (s *recordingScreen) Resume()  { s.calls = append(s.calls, "resume") }

func TestPrompter_SuspendsScreenWhilePrompting(t *testing.T) {
	stubPasswords(t, "pw")

	scr := &recordingScreen{}
	p := newPrompter(strings.NewReader("alice\n"), &bytes.Buffer{}, 0, "")
	p.screen = scr

	_, err := p.Credentials(context.Background(), auth.ChallengeInfo{Subject: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"suspend", "resume"}, scr.calls)

	// A failed prompt still resumes.
	_, err = p.Credentials(context.Background(), auth.ChallengeInfo{Subject: "b"})
	require.Error(t, err)
	assert.Equal(t, []string{"suspend", "resume", "suspend", "resume"}, scr.calls)
}
