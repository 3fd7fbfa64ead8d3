package cli

import (
	"github.com/spf13/cobra"
)

func instructionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instruction",
		Short: "Inspect and operate on instructions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show [ref]",
		Short: "Show an instruction (payment fields are not displayed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.build(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = a.InstructionAdapter(cmd.OutOrStdout()).Show(cmd.Context(), args[0])
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "complete [ref]",
		Short: "Mark an instruction completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.build(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			return a.InstructionAdapter(cmd.OutOrStdout()).Complete(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "send-emails [ref]",
		Short: "Queue the notification emails for an instruction",
		Long: `Queue the notification emails for an instruction.

Emails are delivered by the outbox worker; run 'intake outbox drain' to
deliver them immediately when no server is running.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.build(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			return a.InstructionAdapter(cmd.OutOrStdout()).SendEmails(cmd.Context(), args[0])
		},
	})

	return cmd
}
