package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/upload-go/internal/upload"
)

// Drop-folder timing defaults.
const (
	defaultSettle   = 2 * time.Second
	pruneInterval   = 30 * time.Second
	minSettleTick   = 10 * time.Millisecond
	settleTickRatio = 4
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Upload files as they appear in a directory",
		Long: `Watch a directory and upload every regular file created or written in it,
once the file has been quiet for the settle period. Hidden files and files
ending in ~, .part or .tmp are ignored. Subdirectories are not watched.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().Duration("settle", defaultSettle, "quiet period before a changed file is uploaded")
	cmd.Flags().Bool("existing", false, "also upload files already in the directory")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	dir := args[0]

	settle, err := cmd.Flags().GetDuration("settle")
	if err != nil {
		return err
	}

	existing, err := cmd.Flags().GetBool("existing")
	if err != nil {
		return err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("watching %s: not a directory", dir)
	}

	unlock, err := lockWatchDir(dir)
	if err != nil {
		return err
	}
	defer unlock()

	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	coord, closeSession, err := openSession(ctx, cc, nil)
	if err != nil {
		return err
	}
	defer closeSession()

	coord.Table().Subscribe(newJobView(os.Stderr, false, cc.Flags.Quiet))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	df := &dropFolder{
		settle: settle,
		start: func(path string) error {
			_, err := coord.StartUpload(path)
			return err
		},
		logger: cc.Logger,
	}

	if existing {
		if err := df.submitExisting(dir); err != nil {
			return err
		}
	}

	cc.Statusf("Watching %s (Ctrl-C to stop)\n", dir)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return df.run(gctx, watcher.Events, watcher.Errors)
	})

	g.Go(func() error {
		pruneFinished(gctx, coord, pruneInterval, cc.Logger)
		return nil
	})

	err = g.Wait()

	if n := coord.CancelAll(); n > 0 {
		cc.Statusf("canceling %d uploads\n", n)
	}

	if waitErr := coord.Wait(context.Background()); waitErr != nil {
		cc.Logger.Debug("waiting for uploads", slog.String("error", waitErr.Error()))
	}

	return err
}

// dropFolder turns file system events into uploads. A path is submitted
// once no event has touched it for settle, so files still being written
// are not uploaded half-done.
type dropFolder struct {
	settle time.Duration
	start  func(path string) error
	logger *slog.Logger
}

// run consumes events until ctx is done or the event channel closes.
func (d *dropFolder) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	pending := make(map[string]time.Time)

	ticker := time.NewTicker(max(d.settle/settleTickRatio, minSettleTick))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			if d.interesting(ev) {
				pending[ev.Name] = time.Now()
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}

			if errors.Is(err, fsnotify.ErrEventOverflow) {
				d.logger.Warn("file events were dropped; some files may need uploading again")
				continue
			}

			d.logger.Warn("watch error", slog.String("error", err.Error()))
		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < d.settle {
					continue
				}

				delete(pending, path)
				d.submit(path)
			}
		}
	}
}

func (d *dropFolder) interesting(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}

	return !ignoredName(filepath.Base(ev.Name))
}

// ignoredName matches hidden files and common partial-download names.
func ignoredName(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".tmp")
}

// submit starts an upload for path if it is still a regular file.
func (d *dropFolder) submit(path string) {
	info, err := os.Stat(path)
	if err != nil {
		d.logger.Debug("changed file vanished", slog.String("path", path))
		return
	}

	if !info.Mode().IsRegular() {
		return
	}

	if err := d.start(path); err != nil {
		d.logger.Warn("upload not started",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// submitExisting submits every eligible file already in dir.
func (d *dropFolder) submitExisting(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() || ignoredName(e.Name()) {
			continue
		}

		d.submit(filepath.Join(dir, e.Name()))
	}

	return nil
}

// pruneFinished removes ended jobs from the table so a long-running watch
// does not accumulate rows. Outcomes were already printed by the job view.
func pruneFinished(ctx context.Context, coord *upload.Coordinator, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, j := range coord.Table().Rows() {
				if !j.Status.IsTerminal() {
					continue
				}

				if err := coord.Remove(j.ID); err != nil && !errors.Is(err, upload.ErrJobNotFound) {
					logger.Debug("pruning job", slog.String("job", j.ID.String()), slog.String("error", err.Error()))
				}
			}
		}
	}
}
