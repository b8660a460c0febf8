package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wsvpn/client/internal/nodes"
	"github.com/wsvpn/client/internal/session"
)

// staleAfter bounds how long a cached node list is trusted without
// refreshing it via a short-lived connection (SPEC_FULL.md §6: "prints the
// A4 NodeDirectory cache, refreshing it via a short-lived connection if
// stale").
const staleAfter = 5 * time.Minute

// listNodesCommand prints the cached node directory, supplemented from the
// original distillation's --list-nodes surface (see SPEC_FULL.md §12).
func listNodesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-nodes",
		Short: "List nodes seen in the last session's welcome message",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, stateDir, err := loadConfigAndState(cmd)
			if err != nil {
				return err
			}
			dir := nodes.Open(stateDir)

			if dir.Stale(staleAfter) {
				fetched, err := session.FetchNodes(ctx, cfg)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not refresh node list (%v); showing cached copy\n", err)
				} else if err := dir.Update(fetched); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not cache refreshed node list: %v\n", err)
				}
			}

			entries, err := dir.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no nodes cached yet; connect once with `start` first")
				return nil
			}
			for _, e := range entries {
				health := "unhealthy"
				if e.Node.Healthy {
					health = "healthy"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", e.ID, e.Node.Label, e.Node.Endpoint, health)
			}
			return nil
		},
	}
}
