package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/dashboards"
)

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import dashboards from JSON files",
		Long: `Import one or more dashboard JSON documents. A document is either a full
dashboard with a "data" object or the bare data object. Use "-" to read stdin.`,
		Example: `  leapboard import dashboards/*.json
  cat latency.json | leapboard import -`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, path := range args {
		raw, err := readInput(cmd, path)
		if err != nil {
			return err
		}
		d, err := cmdCtx.Service.ImportFrom(cmd.Context(), dashboards.SourceCLI, raw, cmdCtx.Cfg.User)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", path, err)
		}
		_, _ = fmt.Fprintf(cmdCtx.Out, "Imported %s as %s (%s)\n", path, d.ID, d.Data.Title)
	}
	return nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return raw, nil
}
