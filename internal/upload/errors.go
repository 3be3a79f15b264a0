package upload

import (
	"errors"
	"fmt"

	"github.com/tonimelisma/upload-go/internal/api"
	"github.com/tonimelisma/upload-go/internal/transfer"
)

// Sentinel errors returned by the coordinator.
var (
	ErrInvalidInput = errors.New("upload: invalid input")
	ErrJobNotFound  = errors.New("upload: job not found")
	ErrClosed       = errors.New("upload: coordinator closed")
)

// authFailure classifies a failed credential exchange or a request that was
// rejected again after one.
func authFailure(err error) error {
	switch {
	case errors.Is(err, transfer.ErrAuth):
		return err
	case errors.Is(err, api.ErrUnauthorized):
		return fmt.Errorf("%w: %w", transfer.ErrAuth, err)
	case transfer.StatusCode(err) != 0:
		return fmt.Errorf("%w: %w", transfer.ErrServer, err)
	default:
		return fmt.Errorf("%w: %w", transfer.ErrNetwork, err)
	}
}
