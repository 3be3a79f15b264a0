package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/upload-go/internal/server"
)

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for a [[server.users]] entry",
		Long: `Read a password and print its bcrypt hash for the password_hash key of a
[[server.users]] entry. On a terminal the password is asked twice without
echo; otherwise the first line of stdin is used.`,
		Args: cobra.NoArgs,
		RunE: runHashPassword,
	}
}

func runHashPassword(cmd *cobra.Command, _ []string) error {
	secret, err := readNewPassword(os.Stdin, isTerminal(os.Stdin), int(os.Stdin.Fd()), os.Stderr)
	if err != nil {
		return err
	}

	hash, err := server.HashPassword(secret)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), hash)

	return nil
}
