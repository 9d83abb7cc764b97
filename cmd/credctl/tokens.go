package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/app"
	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

func tokensCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tokens", Short: "Mint and inspect tokens"}

	issueCmd := &cobra.Command{
		Use:   "issue <subject>",
		Short: "Sign a token with the active key",
		Long:  "Sign a token with the active key. Use it to bootstrap an admin: credctl tokens issue ops --scope admin:write",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scopes, _ := cmd.Flags().GetStringSlice("scope")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			return withLocal(cmd, func(ctx context.Context, l *local) error {
				issuer := app.NewIssuer(l.cfg, l.ring)
				if ttl <= 0 {
					ttl = issuer.DefaultTTL()
				}
				now := time.Now()
				token, err := issuer.Issue(jwtx.Claims{
					RegisteredClaims: jwt.RegisteredClaims{Subject: args[0]},
					Scopes:           scopes,
				}, ttl)
				if err != nil {
					return err
				}
				res := credsdk.TokenResponse{
					AccessToken: token,
					TokenType:   "Bearer",
					ExpiresIn:   int(ttl / time.Second),
					ExpiresAt:   now.Add(ttl).UTC().Truncate(time.Second),
				}
				if outputFormat != "json" {
					fmt.Println(token)
					return nil
				}
				printJSONOr(res, nil)
				return nil
			})
		},
	}
	issueCmd.Flags().StringSlice("scope", nil, "Scope to grant (repeatable)")
	issueCmd.Flags().Duration("ttl", 0, "Token lifetime (default: the configured default)")

	verifyCmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a token against the current key set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocal(cmd, func(ctx context.Context, l *local) error {
				claims, err := app.NewIssuer(l.cfg, l.ring).Verify(args[0])
				if err != nil {
					return err
				}
				printJSONOr(claims, func(w *tabwriter.Writer) {
					fmt.Fprintf(w, "sub\t%s\n", orDash(claims.Subject))
					fmt.Fprintf(w, "iss\t%s\n", orDash(claims.Issuer))
					fmt.Fprintf(w, "scopes\t%s\n", joinOrDash(claims.Scopes))
					if claims.ExpiresAt != nil {
						fmt.Fprintf(w, "exp\t%s\n", formatTime(&claims.ExpiresAt.Time))
					}
				})
				return nil
			})
		},
	}

	cmd.AddCommand(issueCmd, verifyCmd)
	return cmd
}
