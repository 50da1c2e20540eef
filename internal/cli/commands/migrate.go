package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/cli/config"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply state database migrations",
		Long:  `Create the local state database if needed and apply all pending schema migrations.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetConfig(cmd.Context())
			if cfg.Backend.URL != "" {
				return errors.New("migrate works on the local state database; unset --backend")
			}

			store, err := openLocalStore(cfg, config.GetLogger(cmd.Context()))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			version, err := store.GetMigrationVersion()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "State database %s at schema version %d\n", cfg.StatePath, version)
			return nil
		},
	}
}
