package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wsvpn/client/internal/supervisor"
)

func statusCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report the tunnel session's current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, stateDir, err := loadConfigAndState(cmd)
			if err != nil {
				return err
			}
			snap, err := supervisor.ReadStatus(stateDir)
			if err != nil {
				return err
			}
			if snap == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not connected")
				return nil
			}
			if asJSON {
				b, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status:      %s\n", snap.Status)
			fmt.Fprintf(cmd.OutOrStdout(), "uptime:      %ds\n", snap.UptimeSecs)
			fmt.Fprintf(cmd.OutOrStdout(), "packets in:  %d (%d bytes)\n", snap.PacketsIn, snap.BytesIn)
			fmt.Fprintf(cmd.OutOrStdout(), "packets out: %d (%d bytes)\n", snap.PacketsOut, snap.BytesOut)
			fmt.Fprintf(cmd.OutOrStdout(), "server:      %s\n", cfg.ServerURL)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")
	return cmd
}
