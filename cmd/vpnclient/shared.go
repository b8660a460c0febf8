package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/wsvpn/client/internal/config"
	"github.com/wsvpn/client/internal/errcat"
	"github.com/wsvpn/client/internal/logging"
	"github.com/wsvpn/client/internal/statedir"
)

// configPath resolves the config file path named by --config (or
// WSVPN_CONFIG), the same precedence loadConfigAndState applies internally.
func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("WSVPN_CONFIG")
	}
	return path
}

// loadConfigAndState reads the config named by --config (or WSVPN_CONFIG),
// resolves the state directory, and initializes logging, returning a ready
// context, the merged configuration, and the resolved state directory.
// Callers that also want a Watcher get the path from configPath.
func loadConfigAndState(cmd *cobra.Command) (context.Context, *config.ClientConfig, string, error) {
	ctx := cmd.Context()
	path := configPath(cmd)

	cfg, err := config.Load(ctx, path)
	if err != nil {
		return nil, nil, "", err
	}

	dir, err := statedir.Resolve(cfg.StateDir)
	if err != nil {
		return nil, nil, "", errcat.Unknown.Newf("resolve state dir: %w", err)
	}
	cfg.StateDir = dir

	ctx, err = logging.InitContext(ctx, "vpnclient", dir, cfg.LogLevel)
	if err != nil {
		return nil, nil, "", errcat.Unknown.Newf("initialize logging: %w", err)
	}
	return ctx, cfg, dir, nil
}
