package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "keys", Short: "Manage signing keys"}

	rotateCmd := &cobra.Command{
		Use:   "rotate",
		Short: "Generate a new active signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocal(cmd, func(ctx context.Context, l *local) error {
				res, err := l.keys().Rotate(ctx)
				if err != nil {
					return err
				}
				printJSONOr(res, func(w *tabwriter.Writer) {
					fmt.Fprintf(w, "kid\t%s\n", res.Kid)
					fmt.Fprintf(w, "previous_kid\t%s\n", orDash(res.PreviousKid))
					fmt.Fprintf(w, "alg\t%s\n", res.Algorithm)
				})
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List signing keys, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocal(cmd, func(ctx context.Context, l *local) error {
				keys, err := l.keys().List(ctx)
				if err != nil {
					return err
				}
				printJSONOr(keys, func(w *tabwriter.Writer) {
					fmt.Fprintln(w, "KID\tALG\tSTATUS\tCREATED\tRETIRED\tREVOKED")
					for _, k := range keys {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
							k.Kid, k.Algorithm, k.Status, formatTime(&k.CreatedAt), formatTime(k.RetiredAt), formatTime(k.RevokedAt))
					}
				})
				return nil
			})
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Revoke retiring keys past their grace period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocal(cmd, func(ctx context.Context, l *local) error {
				kids, err := l.keys().Sweep(ctx)
				if err != nil {
					return err
				}
				printJSONOr(credsdk.SweepKeysResponse{Revoked: kids}, func(w *tabwriter.Writer) {
					for _, kid := range kids {
						fmt.Fprintf(w, "revoked\t%s\n", kid)
					}
				})
				if len(kids) == 0 {
					printSuccess("no keys past their grace period")
				}
				return nil
			})
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke <kid>",
		Short: "Revoke a signing key immediately",
		Long:  "Revoke a signing key immediately. Tokens it signed stop verifying. Revoking the active key rotates first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocal(cmd, func(ctx context.Context, l *local) error {
				if err := l.keys().Revoke(ctx, args[0]); err != nil {
					return err
				}
				printSuccess("revoked " + args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(rotateCmd, listCmd, sweepCmd, revokeCmd)
	return cmd
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
