package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/upload-go/internal/tokenfile"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved login",
		Long: `Remove the token saved by earlier commands. The next command asks for
credentials again.`,
		Args: cobra.NoArgs,
		RunE: runLogout,
	}
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	path := tokenPath()
	if path == "" {
		return fmt.Errorf("cannot determine the data directory")
	}

	removed, err := tokenfile.Remove(path)
	if err != nil {
		return err
	}

	if removed {
		cc.Statusf("Logged out.\n")
	} else {
		cc.Statusf("No saved login.\n")
	}

	return nil
}
