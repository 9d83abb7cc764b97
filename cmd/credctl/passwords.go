package main

import (
	"context"

	"github.com/spf13/cobra"
)

func passwordsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "passwords", Short: "Manage password history"}

	forgetCmd := &cobra.Command{
		Use:   "forget <user-id>",
		Short: "Delete a user's password history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocal(cmd, func(ctx context.Context, l *local) error {
				svc, err := l.passwords()
				if err != nil {
					return err
				}
				if err := svc.Forget(ctx, args[0]); err != nil {
					return err
				}
				printSuccess("forgot password history for " + args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(forgetCmd)
	return cmd
}
