package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrDeclined is returned when no credentials are supplied for a challenge.
	ErrDeclined = errors.New("auth: credentials declined")

	// ErrNotNeeded is returned when a challenge was withdrawn because its
	// requester no longer needs credentials, typically because another
	// request refreshed the token while this one was queued.
	ErrNotNeeded = errors.New("auth: credentials no longer needed")
)

// ChallengeInfo tells the credential provider what the credentials are for.
type ChallengeInfo struct {
	// Subject names the upload or operation that was challenged.
	Subject string
}

// CredentialProvider supplies credentials synchronously. A provider that
// wants to decline returns an error.
type CredentialProvider interface {
	Credentials(ctx context.Context, info ChallengeInfo) (Credential, error)
}

// CredentialProviderFunc adapts a function to CredentialProvider.
type CredentialProviderFunc func(ctx context.Context, info ChallengeInfo) (Credential, error)

// Credentials calls f.
func (f CredentialProviderFunc) Credentials(ctx context.Context, info ChallengeInfo) (Credential, error) {
	return f(ctx, info)
}

type reply struct {
	cred      Credential
	ok        bool
	withdrawn bool
}

// Challenge is one outstanding request for credentials. It carries its own
// reply channel, so answers always reach the requester that asked.
type Challenge struct {
	Info ChallengeInfo

	needed  func() bool
	once    sync.Once
	reply   chan reply
	settled chan struct{}
}

// Needed reports whether the requester still wants credentials. Answerers
// check it right before prompting; a challenge that is no longer needed
// should be withdrawn instead.
func (c *Challenge) Needed() bool {
	return c.needed == nil || c.needed()
}

// Withdraw answers the challenge without credentials because it is no
// longer needed. The requester gets ErrNotNeeded.
func (c *Challenge) Withdraw() {
	c.answer(reply{withdrawn: true})
}

// Supply answers the challenge with cred. Only the first answer counts.
func (c *Challenge) Supply(cred Credential) {
	c.answer(reply{cred: cred, ok: true})
}

// Decline answers the challenge with a refusal. Only the first answer counts.
func (c *Challenge) Decline() {
	c.answer(reply{})
}

// Settled is closed once the requester has finished with the answer, or
// has given up waiting for one.
func (c *Challenge) Settled() <-chan struct{} {
	return c.settled
}

func (c *Challenge) answer(r reply) {
	c.once.Do(func() {
		c.reply <- r
	})
}

// Bridge decouples "credentials are needed" from "credentials are
// supplied". Requesters block only themselves; the collaborator reads
// Challenges and answers each one.
type Bridge struct {
	challenges chan *Challenge
	logger     *slog.Logger
}

// NewBridge creates a bridge.
func NewBridge(logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		challenges: make(chan *Challenge),
		logger:     logger,
	}
}

// Challenges is the stream of pending challenges.
func (b *Bridge) Challenges() <-chan *Challenge {
	return b.challenges
}

// Request publishes a challenge and waits for its answer. It returns
// ErrDeclined when the challenge is declined or ctx ends first.
func (b *Bridge) Request(ctx context.Context, info ChallengeInfo) (Credential, error) {
	var cred Credential

	err := b.Exchange(ctx, info, nil, func(c Credential) error {
		cred = c
		return nil
	})

	return cred, err
}

// Exchange publishes a challenge and passes the supplied credentials to use
// before the challenge is settled. needed is evaluated by the answerer when
// it takes the challenge; if it reports false the challenge is withdrawn and
// ErrNotNeeded is returned. A nil needed means always needed. Exchange
// returns use's error, ErrDeclined, or ErrNotNeeded.
func (b *Bridge) Exchange(ctx context.Context, info ChallengeInfo, needed func() bool, use func(Credential) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrDeclined, err)
	}

	ch := &Challenge{
		Info:    info,
		needed:  needed,
		reply:   make(chan reply, 1),
		settled: make(chan struct{}),
	}

	b.logger.Debug("requesting credentials", slog.String("subject", info.Subject))

	select {
	case b.challenges <- ch:
	case <-ctx.Done():
		return errors.Join(ErrDeclined, ctx.Err())
	}
	defer close(ch.settled)

	select {
	case r := <-ch.reply:
		if r.withdrawn {
			b.logger.Debug("credential request withdrawn", slog.String("subject", info.Subject))
			return ErrNotNeeded
		}

		if !r.ok {
			b.logger.Info("credentials declined", slog.String("subject", info.Subject))
			return ErrDeclined
		}

		return use(r.cred)
	case <-ctx.Done():
		return errors.Join(ErrDeclined, ctx.Err())
	}
}

// Serve answers challenges with p until ctx is done. A provider error
// declines that challenge. Challenges are answered one at a time, so an
// interactive provider never sees overlapping prompts. The next challenge
// is taken only after the supplied one settled, and one made moot by an
// earlier answer is withdrawn without prompting.
func (b *Bridge) Serve(ctx context.Context, p CredentialProvider) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch := <-b.challenges:
			if !ch.Needed() {
				ch.Withdraw()
				continue
			}

			cred, err := p.Credentials(ctx, ch.Info)
			if err != nil {
				b.logger.Debug("credential provider declined",
					slog.String("subject", ch.Info.Subject),
					slog.String("error", err.Error()),
				)
				ch.Decline()

				continue
			}

			ch.Supply(cred)

			select {
			case <-ch.Settled():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
