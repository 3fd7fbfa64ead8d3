package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/intake/internal/db"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			// Open applies pending migrations
			conn, err := db.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer conn.Close()

			v, err := db.CurrentVersion(conn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Database %s at schema version %d\n", cfg.Database.Path, v)

			if seed {
				if err := db.SeedFixtures(conn); err != nil {
					return fmt.Errorf("failed to seed fixtures: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Seeded demo deals")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "insert demo deals for local testing")

	return cmd
}
