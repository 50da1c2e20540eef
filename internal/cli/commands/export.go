package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/cli/config"
)

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a dashboard as JSON or YAML",
		Long: `Write a dashboard document to stdout or to --file. JSON exports can be
imported again; YAML exports omit widget definitions.`,
		Example: `  leapboard export 3f1c... --file latency.json
  leapboard export 3f1c... --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			file, _ := cmd.Flags().GetString("file")
			return runExport(cmd, args[0], format, file)
		},
	}

	cmd.Flags().StringP("format", "f", config.OutputJSON, "Document format (json|yaml)")
	cmd.Flags().String("file", "", "Write to this file instead of stdout")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.OutputJSON, config.OutputYAML}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runExport(cmd *cobra.Command, id, format, file string) error {
	if format != config.OutputJSON && format != config.OutputYAML {
		return fmt.Errorf("unsupported export format %q (json|yaml)", format)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	d, err := cmdCtx.Service.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmdCtx.Out
	if file != "" {
		f, err := os.Create(file)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", file, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	return renderDocument(out, format, d)
}

// renderDocument writes v as JSON or YAML.
func renderDocument(w io.Writer, format string, v any) error {
	if format == config.OutputYAML {
		return renderYAML(w, v)
	}
	return renderJSON(w, v)
}
