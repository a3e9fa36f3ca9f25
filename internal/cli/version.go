package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stagehand-audio/stagehand/sframe"
	"github.com/stagehand-audio/stagehand/sproto"
)

// Version is set at build time via -ldflags "-X github.com/stagehand-audio/stagehand/internal/cli.Version=x.y.z"
var Version = "0.1.0"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the stagehand client version",
		// The version does not depend on configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "stagehand version %s\n", Version)
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"wire: large tag 0x%02X, small tag 0x%02X, max request %d bytes\n",
				sframe.LargeTag, sframe.SmallTag, sproto.MaxRequestSize,
			)
			return nil
		},
	}
}
