package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete dashboards",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, id := range args {
				if err := cmdCtx.Service.Delete(cmd.Context(), id); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmdCtx.Out, "Deleted dashboard %s\n", id)
			}
			return nil
		},
	}
}
