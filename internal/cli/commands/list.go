package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/dashboards"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dashboards",
		Long:  `List all dashboards, newest first. Use --search to filter by title, description or tag.`,
		Example: `  # List all dashboards
  leapboard list

  # List dashboards tagged "apm" as JSON
  leapboard list --search apm --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			search, _ := cmd.Flags().GetString("search")
			return runList(cmd, search)
		},
	}

	cmd.Flags().StringP("search", "s", "", "Only show dashboards matching this text")
	return cmd
}

func runList(cmd *cobra.Command, search string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := cmdCtx.Service.List(cmd.Context())
	if err != nil {
		return err
	}
	return renderDashboards(cmdCtx.Out, cmdCtx.Cfg.OutputFormat, dashboards.Search(list, search))
}
