package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/upload-go/internal/api"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List files stored on the server",
		Long: `List the files stored on the server. With --watch, keep running and print
each file as it is uploaded by any client. With --json and --watch, every
event after the listing is printed as one JSON object per line.`,
		Args: cobra.NoArgs,
		RunE: runLs,
	}

	cmd.Flags().Bool("watch", false, "keep printing files as they are uploaded")

	return cmd
}

func runLs(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}

	coord, closeSession, err := openSession(ctx, cc, nil)
	if err != nil {
		return err
	}
	defer closeSession()

	files, err := coord.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}

	if cc.Flags.JSON {
		if err := printFilesJSON(os.Stdout, files); err != nil {
			return err
		}
	} else {
		printFiles(os.Stdout, files)
	}

	if !watch {
		return nil
	}

	cc.Statusf("Watching for uploads (Ctrl-C to stop)\n")

	enc := json.NewEncoder(os.Stdout)

	err = coord.WatchUploads(ctx, func(ev api.Event) {
		if ev.Type != api.EventUploaded {
			return
		}

		if cc.Flags.JSON {
			_ = enc.Encode(ev) //nolint:errcheck // stdout closed; nothing useful to do
			return
		}

		fmt.Fprintln(os.Stdout, ev.Name)
	})
	if err != nil {
		return fmt.Errorf("watching uploads: %w", err)
	}

	return nil
}

func printFiles(w io.Writer, files []string) {
	for _, name := range files {
		fmt.Fprintln(w, name)
	}
}

// lsJSON is the JSON output schema for `ls --json`.
type lsJSON struct {
	Files []string `json:"files"`
}

func printFilesJSON(w io.Writer, files []string) error {
	if files == nil {
		files = []string{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(lsJSON{Files: files})
}
