package cli

import (
	"github.com/spf13/cobra"

	"github.com/gridsub/gridsub/internal/gridsub/dagstatus"
)

func newStatusCmd() *cobra.Command {
	var (
		summaryOnly bool
		noColor     bool
	)

	cmd := &cobra.Command{
		Use:   "status <status-file>...",
		Short: "Show workflow status from node status snapshots",
		Long: "Parses the status snapshot the meta-scheduler keeps refreshing and\n" +
			"prints a table of every node plus an overall summary.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := dagstatus.RenderOptions{
				SummaryOnly: summaryOnly,
				NoColor:     noColor,
			}
			for _, path := range args {
				snap, err := dagstatus.ParseFile(path)
				if err != nil {
					return err
				}
				dagstatus.Render(cmd.OutOrStdout(), path, snap, opts)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&summaryOnly, "summary", "s", false,
		"Only print the overall workflow summary")
	cmd.Flags().BoolVar(&noColor, "no-color", false,
		"Disable colored output")
	return cmd
}
