package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/apikey"
	"github.com/spf13/cobra"
)

func newKeysCmd(env Env, opts *rootOptions) *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	cmd.PersistentFlags().StringVar(&profile, "profile", "", "Profile id (default: the default profile)")

	resolve := func(ctx context.Context, b Backend) (uuid.UUID, error) {
		if profile != "" {
			id, err := uuid.Parse(profile)
			if err != nil {
				return uuid.Nil, fmt.Errorf("invalid profile id %q: %w", profile, err)
			}
			return id, nil
		}
		p, err := b.GetDefaultProfile(ctx)
		if err != nil {
			return uuid.Nil, fmt.Errorf("load default profile: %w", err)
		}
		return p.ID, nil
	}

	var (
		name   string
		scopes []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a key and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, env, opts, func(ctx context.Context, b Backend) error {
				profileID, err := resolve(ctx, b)
				if err != nil {
					return err
				}
				key, raw, err := apikey.New(profileID, name, scopes, env.KeyCost)
				if err != nil {
					return err
				}
				if err := b.CreateAPIKey(ctx, key); err != nil {
					return fmt.Errorf("create key: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "id:     %s\n", key.ID)
				fmt.Fprintf(out, "scopes: %v\n", key.Scopes)
				fmt.Fprintf(out, "key:    %s\n", raw)
				fmt.Fprintln(out, "Store the key now; it cannot be shown again.")
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "Key name")
	create.Flags().StringSliceVar(&scopes, "scope", nil, "Scope to grant (repeatable: read, write, admin)")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List active keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, env, opts, func(ctx context.Context, b Backend) error {
				profileID, err := resolve(ctx, b)
				if err != nil {
					return err
				}
				keys, err := b.ListAPIKeys(ctx, profileID)
				if err != nil {
					return fmt.Errorf("list keys: %w", err)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tSCOPES\tLAST USED")
				for _, k := range keys {
					lastUsed := "never"
					if k.LastUsedAt != nil {
						lastUsed = k.LastUsedAt.Format("2006-01-02 15:04")
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\n", k.ID, k.Name, k.KeyPrefix, k.Scopes, lastUsed)
				}
				return tw.Flush()
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid key id %q: %w", args[0], err)
			}
			return withBackend(cmd, env, opts, func(ctx context.Context, b Backend) error {
				profileID, err := resolve(ctx, b)
				if err != nil {
					return err
				}
				if err := b.RevokeAPIKey(ctx, keyID, profileID); err != nil {
					return fmt.Errorf("revoke key: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", keyID)
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}
