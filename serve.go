package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/upload-go/internal/config"
	"github.com/tonimelisma/upload-go/internal/server"
	"github.com/tonimelisma/upload-go/internal/storage"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload server",
		Long: `Run the upload server configured by the [server] section. Files are kept
in upload_dir or, with storage = "s3", in an S3 bucket. The signing key can
also come from ` + config.EnvSigningKey + `.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "listen address (overrides server.listen_addr)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	scfg := cc.Cfg.Server

	listen, err := cmd.Flags().GetString("listen")
	if err != nil {
		return err
	}

	if listen != "" {
		scfg.ListenAddr = listen
	}

	if err := config.ValidateServe(&scfg); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	store, err := openStore(ctx, &scfg, cc.Logger)
	if err != nil {
		return err
	}

	authn, err := server.NewAuthenticator([]byte(scfg.SigningKey), scfg.TokenTTLDuration(), scfg.UserMap())
	if err != nil {
		return err
	}

	cc.Logger.Info("starting server",
		slog.String("storage", scfg.Storage),
		slog.Int("users", len(scfg.Users)),
		slog.Int64("max_upload_size", scfg.MaxUploadBytes()),
	)

	return server.New(authn, store, scfg.MaxUploadBytes(), cc.Logger).Run(ctx, scfg.ListenAddr)
}

// openStore builds the configured storage backend.
func openStore(ctx context.Context, s *config.ServerConfig, logger *slog.Logger) (storage.Store, error) {
	if s.Storage == config.StorageS3 {
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    s.S3.Bucket,
			Region:    s.S3.Region,
			Endpoint:  s.S3.Endpoint,
			Prefix:    s.S3.Prefix,
			AccessKey: s.S3.AccessKey,
			SecretKey: s.S3.SecretKey,
		}, logger)
		if err != nil {
			return nil, err
		}

		return store, nil
	}

	store, err := storage.NewFSStore(s.UploadDir, logger)
	if err != nil {
		return nil, err
	}

	return store, nil
}
