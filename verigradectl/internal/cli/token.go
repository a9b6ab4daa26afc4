package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
)

type tokenOptions struct {
	identity middleware.Identity
	ttl      time.Duration
}

// NewTokenCommand mints a bearer token signed with JWT_SECRET.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(rootOpts, opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.identity.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&opts.identity.Email, "email", "", "email")
	cmd.Flags().StringVar(&opts.identity.OrganizationID, "org", "", "organization id")
	cmd.Flags().StringVar(&opts.identity.Role, "role", middleware.RoleMember, "organization role (owner|admin|member|viewer)")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runToken(rootOpts *RootOptions, opts *tokenOptions, cmd *cobra.Command) error {
	if opts.ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	if opts.identity.OrganizationID != "" && !middleware.RoleAtLeast(opts.identity.Role, middleware.RoleViewer) {
		return fmt.Errorf("invalid role %q", opts.identity.Role)
	}
	if opts.identity.OrganizationID == "" {
		opts.identity.Role = ""
	}

	token, err := middleware.IssueToken(opts.identity, opts.ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	out := cmd.OutOrStdout()
	if rootOpts.Format == "json" {
		return json.NewEncoder(out).Encode(map[string]any{
			"token":     token,
			"expiresAt": time.Now().Add(opts.ttl).UTC().Format(time.RFC3339),
		})
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
