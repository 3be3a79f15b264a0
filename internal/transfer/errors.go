package transfer

import (
	"errors"
	"fmt"

	"github.com/tonimelisma/upload-go/internal/api"
)

// Sentinel errors. Errors carried by a Result wrap exactly one of
// ErrNetwork, ErrAuth, ErrServer or ErrFileUnreadable.
var (
	ErrFileUnreadable = errors.New("transfer: file unreadable")
	ErrNetwork        = errors.New("transfer: network error")
	ErrAuth           = errors.New("transfer: not authorized")
	ErrServer         = errors.New("transfer: server rejected upload")
	ErrUnknownHandle  = errors.New("transfer: unknown or finished handle")
	ErrNotParked      = errors.New("transfer: transfer is not awaiting credentials")
)

// classify maps an upload attempt error onto the transfer taxonomy. Any
// response the server sent is ErrServer; everything else is ErrNetwork.
func classify(err error) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if errors.Is(apiErr, api.ErrUnauthorized) {
			return fmt.Errorf("%w: %w", ErrAuth, err)
		}

		return fmt.Errorf("%w: %w", ErrServer, err)
	}

	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}
