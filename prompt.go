package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/tonimelisma/upload-go/internal/auth"
	"github.com/tonimelisma/upload-go/internal/config"
)

// readPassword reads a line from the terminal without echo. Tests replace it.
var readPassword = term.ReadPassword

var (
	errNoCredentials    = errors.New("server requires credentials: run interactively or set " + config.EnvPassword)
	errEmptyUsername    = errors.New("user name must not be empty")
	errPasswordMismatch = errors.New("passwords do not match")
)

// screen is terminal output that must stand aside while a prompt is shown.
type screen interface {
	Suspend()
	Resume()
}

// prompter asks for credentials on the terminal. The bridge serves one
// challenge at a time, so prompts never interleave.
type prompter struct {
	in       *bufio.Reader
	out      io.Writer
	fd       int
	username string
	screen   screen
}

func newPrompter(in io.Reader, out io.Writer, fd int, username string) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out, fd: fd, username: username}
}

// Credentials implements auth.CredentialProvider.
func (p *prompter) Credentials(ctx context.Context, info auth.ChallengeInfo) (auth.Credential, error) {
	if err := ctx.Err(); err != nil {
		return auth.Credential{}, err
	}

	if p.screen != nil {
		p.screen.Suspend()
		defer p.screen.Resume()
	}

	fmt.Fprintf(p.out, "\nAuthentication required for %s\n", info.Subject)

	user, err := p.readUsername()
	if err != nil {
		return auth.Credential{}, err
	}

	fmt.Fprint(p.out, "Password: ")
	secret, err := readPassword(p.fd)
	fmt.Fprintln(p.out)

	if err != nil {
		return auth.Credential{}, fmt.Errorf("reading password: %w", err)
	}

	// Offer the same name next time.
	p.username = user

	return auth.Credential{Identity: user, Secret: string(secret)}, nil
}

func (p *prompter) readUsername() (string, error) {
	if p.username != "" {
		fmt.Fprintf(p.out, "Username [%s]: ", p.username)
	} else {
		fmt.Fprint(p.out, "Username: ")
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading user name: %w", err)
	}

	user := strings.TrimSpace(line)
	if user == "" {
		user = p.username
	}

	if user == "" {
		return "", errEmptyUsername
	}

	return user, nil
}

// envCredential returns the non-interactive credential from the user name
// and UPLOAD_GO_PASSWORD, when both are set.
func envCredential(cc *CLIContext) (auth.Credential, bool) {
	if cc.Env.Password == "" || cc.Cfg.Client.Username == "" {
		return auth.Credential{}, false
	}

	return auth.Credential{Identity: cc.Cfg.Client.Username, Secret: cc.Env.Password}, true
}

// credentialProvider picks how challenges are answered: the environment
// credential if there is one, a terminal prompt if stdin is interactive,
// otherwise every challenge is declined. A prompt suspends scr, if set,
// while it is on screen.
func credentialProvider(cc *CLIContext, scr screen) auth.CredentialProvider {
	if cred, ok := envCredential(cc); ok {
		return auth.CredentialProviderFunc(func(context.Context, auth.ChallengeInfo) (auth.Credential, error) {
			return cred, nil
		})
	}

	if isTerminal(os.Stdin) {
		p := newPrompter(os.Stdin, os.Stderr, int(os.Stdin.Fd()), cc.Cfg.Client.Username)
		p.screen = scr

		return p
	}

	return auth.CredentialProviderFunc(func(context.Context, auth.ChallengeInfo) (auth.Credential, error) {
		return auth.Credential{}, errNoCredentials
	})
}

// readNewPassword reads a password to hash. Interactively it asks twice
// without echo; from a pipe it takes the first line.
func readNewPassword(in io.Reader, interactive bool, fd int, out io.Writer) (string, error) {
	if !interactive {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}

		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(out, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(out)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	fmt.Fprint(out, "Confirm password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(out)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	if string(first) != string(second) {
		return "", errPasswordMismatch
	}

	return string(first), nil
}
