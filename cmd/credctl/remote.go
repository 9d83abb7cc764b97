package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/spf13/cobra"
)

func jwksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jwks",
		Short: "Print the published verification key set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var set jwtx.JWKS
			if serverURL != "" {
				res, err := credsdk.NewClient(serverURL).JWKS(cmd.Context())
				if err != nil {
					return err
				}
				set = jwtx.JWKS(*res)
			} else {
				err := withLocal(cmd, func(ctx context.Context, l *local) error {
					set = l.ring.VerificationSet()
					return nil
				})
				if err != nil {
					return err
				}
			}
			printJSONOr(set, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "KID\tKTY\tALG")
				for _, k := range set.Keys {
					fmt.Fprintf(w, "%s\t%s\t%s\n", k.Kid, k.Kty, k.Alg)
				}
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "Query a running server instead of the store")
	return cmd
}

func healthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running server's readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				return fmt.Errorf("--server is required")
			}
			res, err := credsdk.NewClient(serverURL).Readyz(cmd.Context())
			if res == nil {
				return err
			}
			printJSONOr(res, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "status\t%s\n", res.Status)
				fmt.Fprintf(w, "version\t%s\n", res.Version)
				fmt.Fprintf(w, "uptime\t%s\n", res.Uptime)
				if res.Checks != nil {
					fmt.Fprintf(w, "database\t%s\n", res.Checks.Database)
					fmt.Fprintf(w, "signer\t%s\n", res.Checks.Signer)
					fmt.Fprintf(w, "rate_limiter\t%s\n", orDash(res.Checks.RateLimiter))
				}
			})
			return err
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "Base URL of the server, e.g. http://localhost:8080")
	return cmd
}
