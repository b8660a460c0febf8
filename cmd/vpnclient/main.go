// Command vpnclient is the entry point for the layer-3 tunnel client.
// Grounded on the teacher's cmd/telepresence/main.go split between a normal
// CLI invocation and a re-exec'd foreground process, generalized from that
// file's daemon/connector pair to this client's single daemon-foreground
// target.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wsvpn/client/internal/errcat"
)

func main() {
	ctx := context.Background()

	cmd := rootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: error: %v\n", cmd.CommandPath(), err)
		os.Exit(errcat.GetCategory(err).ExitCode())
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "vpnclient",
		Short:         "Layer-3 tunnel client",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().String("config", "", "path to the JSON configuration file")
	root.AddCommand(startCommand())
	root.AddCommand(daemonForegroundCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(listNodesCommand())
	root.AddCommand(testCommand())
	return root
}

