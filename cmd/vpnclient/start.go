package main

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wsvpn/client/internal/errcat"
)

// startCommand is the user-facing entry point. If the process doesn't
// already hold root privileges it re-execs itself as `daemon-foreground`
// under sudo; otherwise it runs the tunnel directly, matching the teacher's
// main.go isDaemon() split without needing a separate long-lived daemon
// process to proxy to.
func startCommand() *cobra.Command {
	var node string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Bring the tunnel up and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Geteuid() == 0 {
				df := daemonForegroundCommand()
				_ = df.Flags().Set("node", node)
				df.SetContext(cmd.Context())
				return df.RunE(df, nil)
			}
			return reexecWithSudo(cmd, node)
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "pre-select a node before bringing the tunnel up")
	return cmd
}

func reexecWithSudo(cmd *cobra.Command, node string) error {
	self, err := os.Executable()
	if err != nil {
		return errcat.Unknown.Newf("locate own executable: %w", err)
	}
	args := []string{self, "daemon-foreground"}
	if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	if node != "" {
		args = append(args, "--node", node)
	}

	sudoPath, err := exec.LookPath("sudo")
	if err != nil {
		return errcat.Permission.New("not running as root and sudo is unavailable; rerun as root")
	}
	args = append([]string{sudoPath}, args...)
	// Replace this process outright rather than spawning a child: exit
	// codes and signal delivery (SIGINT/SIGTERM during graceful shutdown)
	// should reach the privileged process directly.
	return syscall.Exec(sudoPath, args, os.Environ())
}
