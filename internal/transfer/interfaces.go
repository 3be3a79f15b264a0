package transfer

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/upload-go/internal/api"
)

// Uploader sends one multipart upload request. Satisfied by *api.Client.
type Uploader interface {
	Upload(ctx context.Context, tok *oauth2.Token, part api.UploadPart, progress api.ProgressFunc) error
}

// Kind is the outcome of a finished transfer.
type Kind int

// Terminal outcomes.
const (
	Success Kind = iota
	Canceled
	Failed
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Canceled:
		return "canceled"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the terminal event of a transfer. Err is set only for Failed.
type Result struct {
	Kind Kind
	Err  error
}

// Challenge accompanies AuthRequired. Generation is the token generation
// the rejected request was sent with.
type Challenge struct {
	Generation uint64
}

// EventSink receives transfer events. For a handle, Progress may be called
// any number of times, AuthRequired at most once, and Finished exactly once
// and last. Calls for one handle never overlap; calls for different handles
// may run concurrently. Implementations must not block.
type EventSink interface {
	Progress(h Handle, sent, total int64)
	AuthRequired(h Handle, c Challenge)
	Finished(h Handle, r Result)
}
