package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/upload-go/internal/jobs"
	"github.com/tonimelisma/upload-go/internal/upload"
)

// errUploadsFailed makes the process exit 1 after put has already printed
// which uploads did not finish.
var errUploadsFailed = errors.New("some uploads did not finish")

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <file>...",
		Short: "Upload files",
		Long: `Upload one or more files concurrently. Progress is shown live when stderr
is a terminal. Ctrl-C cancels every upload still running.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPut,
	}
}

func runPut(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	view := newJobView(os.Stderr, isTerminal(os.Stderr) && !cc.Flags.Quiet, cc.Flags.Quiet)

	coord, closeSession, err := openSession(ctx, cc, view)
	if err != nil {
		return err
	}
	defer closeSession()

	coord.Table().Subscribe(view)

	notStarted := startUploads(coord, args, cc.Logger)

	waitOrCancel(ctx, coord, cc)
	view.Flush()

	rows := coord.Table().Rows()

	if cc.Flags.JSON {
		if err := printJobsJSON(os.Stdout, rows); err != nil {
			return err
		}
	}

	summary := summarize(rows)
	cc.Statusf("%d uploaded, %d failed, %d canceled\n", summary.finished, summary.failed, summary.canceled)

	if notStarted > 0 || summary.failed > 0 || summary.canceled > 0 {
		return errUploadsFailed
	}

	return nil
}

// startUploads starts one job per path. Paths that cannot be opened get no
// job; they are reported here and counted.
func startUploads(coord *upload.Coordinator, paths []string, logger *slog.Logger) int {
	failed := 0

	for _, path := range paths {
		id, err := coord.StartUpload(path)
		if err != nil {
			failed++

			fmt.Fprintf(os.Stderr, "cannot upload %s: %v\n", path, err)

			continue
		}

		logger.Debug("upload started", slog.String("path", path), slog.String("job", id.String()))
	}

	return failed
}

// waitOrCancel waits for every upload to end. If ctx is canceled first, all
// remaining uploads are canceled and waited for.
func waitOrCancel(ctx context.Context, coord *upload.Coordinator, cc *CLIContext) {
	done := make(chan error, 1)

	go func() {
		done <- coord.Wait(context.Background())
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	if n := coord.CancelAll(); n > 0 {
		cc.Statusf("canceling %d uploads\n", n)
	}

	<-done
}

type putSummary struct {
	finished, failed, canceled int
}

func summarize(rows []jobs.Job) putSummary {
	var s putSummary

	for _, j := range rows {
		switch j.Status.State {
		case jobs.StateFinished:
			s.finished++
		case jobs.StateFailed:
			s.failed++
		case jobs.StateCanceled:
			s.canceled++
		}
	}

	return s
}

// putJSONJob is the JSON output schema for one job in `put --json`.
type putJSONJob struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func printJobsJSON(w io.Writer, rows []jobs.Job) error {
	out := make([]putJSONJob, 0, len(rows))

	for _, j := range rows {
		item := putJSONJob{
			ID:        j.ID.String(),
			Name:      j.DisplayName,
			Path:      j.SourcePath,
			MediaType: j.MediaType,
			Size:      j.Size,
			Status:    j.Status.State.String(),
		}

		if j.Status.Reason != nil {
			item.Error = j.Status.Reason.Error()
		}

		out = append(out, item)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}
