package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/aussiebroadwan/credcore/internal/credential/service"
	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/spf13/cobra"
)

func apikeysCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikeys", Short: "Manage API keys"}

	issueCmd := &cobra.Command{
		Use:   "issue <client-name>",
		Short: "Create an API key",
		Long:  "Create an API key. The plaintext key is printed once and cannot be recovered.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			perms, _ := cmd.Flags().GetStringSlice("permission")
			limit, _ := cmd.Flags().GetInt("rate-limit")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			meta, _ := cmd.Flags().GetStringToString("meta")
			return withLocal(cmd, func(ctx context.Context, l *local) error {
				svc, err := l.apiKeys()
				if err != nil {
					return err
				}
				issued, err := svc.Issue(ctx, service.IssueAPIKeyRequest{
					ClientName:  args[0],
					Permissions: perms,
					RateLimit:   limit,
					TTL:         ttl,
					Metadata:    meta,
				})
				if err != nil {
					return err
				}
				printJSONOr(map[string]any{"key": issued.Key, "key_id": issued.KeyID}, func(w *tabwriter.Writer) {
					fmt.Fprintf(w, "key_id\t%s\n", issued.KeyID)
					fmt.Fprintf(w, "key\t%s\n", issued.Key)
					fmt.Fprintf(w, "rate_limit\t%d\n", issued.Record.RateLimit)
					fmt.Fprintf(w, "expires_at\t%s\n", formatTime(issued.Record.ExpiresAt))
				})
				printSuccess("store the key now; it will not be shown again")
				return nil
			})
		},
	}
	issueCmd.Flags().StringSlice("permission", nil, "Permission to grant (repeatable)")
	issueCmd.Flags().Int("rate-limit", 0, "Requests per window (default: the configured default)")
	issueCmd.Flags().Duration("ttl", 0, "Key lifetime (default: never expires)")
	issueCmd.Flags().StringToString("meta", nil, "Metadata key=value pairs")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocal(cmd, func(ctx context.Context, l *local) error {
				svc, err := l.apiKeys()
				if err != nil {
					return err
				}
				keys, err := svc.List(ctx)
				if err != nil {
					return err
				}
				infos := make([]credsdk.APIKeyInfo, 0, len(keys))
				for _, k := range keys {
					infos = append(infos, credsdk.APIKeyInfo{
						KeyID:       k.KeyID,
						ClientName:  k.ClientName,
						Permissions: k.Permissions,
						RateLimit:   k.RateLimit,
						IsActive:    k.IsActive,
						CreatedAt:   k.CreatedAt,
						ExpiresAt:   k.ExpiresAt,
						LastUsedAt:  k.LastUsedAt,
						RevokedAt:   k.RevokedAt,
						UsageCount:  k.UsageCount,
						Metadata:    k.Metadata,
					})
				}
				printJSONOr(infos, func(w *tabwriter.Writer) {
					fmt.Fprintln(w, "KEY ID\tCLIENT\tACTIVE\tLIMIT\tUSAGE\tLAST USED\tPERMISSIONS")
					for _, k := range keys {
						fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%d\t%s\t%s\n",
							k.KeyID, k.ClientName, k.IsActive, k.RateLimit, k.UsageCount,
							formatTime(k.LastUsedAt), strings.Join(k.Permissions, ","))
					}
				})
				return nil
			})
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Deactivate an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocal(cmd, func(ctx context.Context, l *local) error {
				svc, err := l.apiKeys()
				if err != nil {
					return err
				}
				if err := svc.Revoke(ctx, args[0]); err != nil {
					return err
				}
				printSuccess("revoked " + args[0])
				return nil
			})
		},
	}

	purgeCmd := &cobra.Command{
		Use:   "purge <key-id>",
		Short: "Delete an API key record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocal(cmd, func(ctx context.Context, l *local) error {
				svc, err := l.apiKeys()
				if err != nil {
					return err
				}
				if err := svc.Purge(ctx, args[0]); err != nil {
					return err
				}
				printSuccess("purged " + args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(issueCmd, listCmd, revokeCmd, purgeCmd)
	return cmd
}
