package cli

import (
	"fmt"
	"time"

	"leadmarket/internal/auth"
	"leadmarket/internal/config"

	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	var (
		role   string
		ttl    time.Duration
		secret string
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for a contractor or admin",
		Long: `Issue a signed bearer token. The subject is the contractor id for
contractor tokens and an operator handle for admin tokens.

The signing secret defaults to the configured jwt_secret.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				secret = cfg.JWTSecret
			}
			token, err := auth.GenerateToken(secret, args[0], role, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			printf(cmd.OutOrStdout(), "%s\n", token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", auth.RoleContractor, "contractor or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to config)")
	return cmd
}

func newHashKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <service-key>",
		Short: "Print the service_key_hash value for a collaborator key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashServiceKey(args[0])
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", hash)
			return nil
		},
	}
}
