package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/cli/config"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create an empty dashboard",
		Long:  `Create an empty dashboard. Without a title the dashboard is named "Sample Title".`,
		Example: `  leapboard create "Checkout latency" --tag apm --tag checkout`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			tags, _ := cmd.Flags().GetStringSlice("tag")

			data := core.DashboardData{Description: description, Tags: tags}
			if len(args) == 1 {
				data.Title = args[0]
			}
			return runCreate(cmd, data)
		},
	}

	cmd.Flags().String("description", "", "Dashboard description")
	cmd.Flags().StringSlice("tag", nil, "Dashboard tag (repeatable)")
	return cmd
}

func runCreate(cmd *cobra.Command, data core.DashboardData) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	for i, tag := range data.Tags {
		data.Tags[i] = strings.TrimSpace(tag)
	}

	d, err := cmdCtx.Service.CreateFrom(cmd.Context(), data, cmdCtx.Cfg.User)
	if err != nil {
		return err
	}

	if cmdCtx.Cfg.OutputFormat != config.OutputTable {
		return renderDocument(cmdCtx.Out, cmdCtx.Cfg.OutputFormat, d)
	}
	_, _ = fmt.Fprintf(cmdCtx.Out, "Created dashboard %s (%s)\n", d.ID, d.Data.Title)
	return nil
}
