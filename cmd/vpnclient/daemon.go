package main

import (
	"github.com/spf13/cobra"

	"github.com/datawire/dlib/dlog"

	"github.com/wsvpn/client/internal/config"
	"github.com/wsvpn/client/internal/supervisor"
	"github.com/wsvpn/client/internal/version"
)

// daemonForegroundCommand runs the Supervisor in the foreground. It is what
// `start` re-execs itself into once it has confirmed it holds the
// privileges needed to create the tunnel interface and rewrite host network
// state, the same split the teacher uses for its own `daemon-foreground`
// hidden subcommand.
func daemonForegroundCommand() *cobra.Command {
	var node string
	cmd := &cobra.Command{
		Use:    "daemon-foreground",
		Short:  "Run the tunnel client in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, stateDir, err := loadConfigAndState(cmd)
			if err != nil {
				return err
			}
			dlog.Infof(ctx, "vpnclient %s starting", version.Display())
			watcher, err := config.NewWatcher(ctx, configPath(cmd), cfg)
			if err != nil {
				return err
			}
			sup := supervisor.New(cfg, stateDir, watcher)
			sup.PreselectedNode = node
			return sup.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "pre-select a node before bringing the tunnel up")
	return cmd
}
