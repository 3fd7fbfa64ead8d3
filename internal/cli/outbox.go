package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/intake/internal/core/outbox"
)

func outboxCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drain the task outbox",
	}

	var status, ref string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List outbox tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !outbox.Status(status).Valid() {
				return fmt.Errorf("invalid --status %q (queued, sending, sent, failed)", status)
			}

			a, cleanup, err := opts.build(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			return a.OutboxAdapter(cmd.OutOrStdout()).List(cmd.Context(), status, ref, limit)
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().StringVar(&ref, "instruction", "", "filter by instruction reference")
	list.Flags().IntVar(&limit, "limit", 50, "maximum tasks to show")

	drain := &cobra.Command{
		Use:   "drain",
		Short: "Run due tasks now and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.build(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			return a.OutboxAdapter(cmd.OutOrStdout()).Drain(cmd.Context())
		},
	}

	cmd.AddCommand(list, drain)
	return cmd
}
