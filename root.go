package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/upload-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagServer     string
	flagUser       string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// skipConfigCommands lists commands that work without loading config.
// hash-password is used to write the config file in the first place, and
// logout must work even when the config is broken.
var skipConfigCommands = map[string]bool{
	"upload-go hash-password": true,
	"upload-go logout":        true,
}

// CLIFlags are the global flags after parsing.
type CLIFlags struct {
	JSON    bool
	Verbose bool
	Quiet   bool
}

// CLIContext is what every subcommand needs: the resolved config, the
// environment overrides (the password lives only here) and a logger.
type CLIContext struct {
	Cfg     *config.Config
	CfgPath string
	Env     config.EnvOverrides
	Flags   CLIFlags
	Logger  *slog.Logger
}

type cliContextKey struct{}

// mustCLIContext returns the context stored by PersistentPreRunE. Commands
// in skipConfigCommands get one with default config.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("upload-go: CLI context missing; PersistentPreRunE did not run")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "upload-go",
		Short:   "Upload files to an upload server",
		Long:    "Upload files concurrently with live progress, list stored files, and run the upload server.",
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagServer, "server", "", "server URL including the API prefix (e.g. http://localhost:5000/api)")
	cmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "user name for authentication")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHashPasswordCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogoutCmd())

	return cmd
}

// loadCLIContext resolves the effective configuration from the four-layer
// override chain and builds the logger.
func loadCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	env := config.ReadEnvOverrides()

	cc := &CLIContext{
		Cfg: config.DefaultConfig(),
		Env: env,
		Flags: CLIFlags{
			JSON:    flagJSON,
			Verbose: flagVerbose,
			Quiet:   flagQuiet,
		},
	}

	if !skipConfigCommands[cmd.CommandPath()] {
		cli := config.CLIOverrides{
			ConfigPath: flagConfigPath,
			ServerURL:  flagServer,
			Username:   flagUser,
		}

		cfg, path, err := config.Resolve(env, cli)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}

		cc.Cfg = cfg
		cc.CfgPath = path
	}

	cc.Logger = buildLogger(&cc.Cfg.Logging, cc.Flags)

	cc.Logger.Debug("config resolved",
		slog.String("path", cc.CfgPath),
		slog.String("server_url", cc.Cfg.Client.ServerURL),
	)

	return cc, nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win. Format "auto" writes
// text to a terminal and JSON otherwise.
func buildLogger(lc *config.LoggingConfig, flags CLIFlags) *slog.Logger {
	level := slog.LevelInfo

	switch lc.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	format := lc.LogFormat
	if format == "auto" || format == "" {
		format = "json"
		if isTerminal(os.Stderr) {
			format = "text"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
