package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/upload-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

// configShowJSON is the JSON schema for `config show --json`. Secrets are
// reported only as set or unset.
type configShowJSON struct {
	Path            string   `json:"path"`
	ServerURL       string   `json:"server_url"`
	Username        string   `json:"username,omitempty"`
	ConnectTimeout  string   `json:"connect_timeout"`
	ResponseTimeout string   `json:"response_timeout"`
	LogLevel        string   `json:"log_level"`
	LogFormat       string   `json:"log_format"`
	ListenAddr      string   `json:"listen_addr"`
	Storage         string   `json:"storage"`
	UploadDir       string   `json:"upload_dir,omitempty"`
	Bucket          string   `json:"bucket,omitempty"`
	SigningKeySet   bool     `json:"signing_key_set"`
	TokenTTL        string   `json:"token_ttl"`
	MaxUploadSize   string   `json:"max_upload_size"`
	Users           []string `json:"users"`
	PasswordFromEnv bool     `json:"password_from_env"`
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	cfg := cc.Cfg

	if !cc.Flags.JSON {
		return config.RenderEffective(cfg, cc.CfgPath, cmd.OutOrStdout())
	}

	out := configShowJSON{
		Path:            cc.CfgPath,
		ServerURL:       cfg.Client.ServerURL,
		Username:        cfg.Client.Username,
		ConnectTimeout:  cfg.Client.ConnectTimeout,
		ResponseTimeout: cfg.Client.ResponseTimeout,
		LogLevel:        cfg.Logging.LogLevel,
		LogFormat:       cfg.Logging.LogFormat,
		ListenAddr:      cfg.Server.ListenAddr,
		Storage:         cfg.Server.Storage,
		SigningKeySet:   cfg.Server.SigningKey != "",
		TokenTTL:        cfg.Server.TokenTTL,
		MaxUploadSize:   cfg.Server.MaxUploadSize,
		Users:           make([]string, 0, len(cfg.Server.Users)),
		PasswordFromEnv: cc.Env.Password != "",
	}

	if cfg.Server.Storage == config.StorageS3 {
		out.Bucket = cfg.Server.S3.Bucket
	} else {
		out.UploadDir = cfg.Server.UploadDir
	}

	for _, u := range cfg.Server.Users {
		out.Users = append(out.Users, u.Name)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}
