// Package token implements the gatewayctl token commands. Tokens are signed
// with the same secret the gateway verifies against.
package token

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/upb/crm-gateway/auth"
	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/utils"
)

// IssueOptions are the flags of `token issue`.
type IssueOptions struct {
	Secret   string            `flag:"secret" validate:"required"`
	Issuer   string            `flag:"issuer"`
	UserID   string            `flag:"user-id" validate:"required,max=128"`
	Email    string            `flag:"email" validate:"omitempty,email"`
	Role     string            `flag:"role" validate:"omitempty,oneof=admin agent user"`
	Metadata map[string]string `flag:"meta"`
}

// VerifyOptions are the flags of `token verify`.
type VerifyOptions struct {
	Secret string `flag:"secret" validate:"required"`
	Token  string `flag:"token" validate:"required"`
}

type issued struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresIn int64  `json:"expiresIn"`
}

func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect gateway tokens",
		Example: `  gatewayctl token issue --user-id u-123 --email ops@example.com
  gatewayctl token verify eyJhbGciOi...`,
	}

	cmd.AddCommand(newIssueCommand(), newVerifyCommand())

	return cmd
}

func newIssueCommand() *cobra.Command {
	var opts IssueOptions

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token for an identity",
		Args:  cobra.NoArgs,
		Example: `  gatewayctl token issue --user-id u-123
  gatewayctl token issue --user-id admin-1 --role admin --meta team=support`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Secret == "" {
				opts.Secret = os.Getenv("JWT_SECRET")
			}
			return Issue(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Secret, "secret", "",
		"Signing secret (default: $JWT_SECRET)")
	cmd.Flags().StringVar(&opts.Issuer, "issuer", "crm-gateway",
		"iss claim on the issued token")
	cmd.Flags().StringVar(&opts.UserID, "user-id", "",
		"User identifier")
	cmd.Flags().StringVar(&opts.Email, "email", "",
		"User email")
	cmd.Flags().StringVar(&opts.Role, "role", models.RoleUser,
		"Role: admin, agent or user")
	cmd.Flags().StringToStringVar(&opts.Metadata, "meta", nil,
		"Metadata entries as key=value (repeatable)")

	return cmd
}

func newVerifyCommand() *cobra.Command {
	var opts VerifyOptions

	cmd := &cobra.Command{
		Use:     "verify <token>",
		Short:   "Check a token and print its identity",
		Args:    cobra.ExactArgs(1),
		Example: `  gatewayctl token verify "$TOKEN"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Secret == "" {
				opts.Secret = os.Getenv("JWT_SECRET")
			}
			opts.Token = strings.TrimPrefix(strings.TrimSpace(args[0]), "Bearer ")
			return Verify(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Secret, "secret", "",
		"Signing secret (default: $JWT_SECRET)")

	return cmd
}

// Issue signs a token for opts and writes it to out as JSON.
func Issue(out io.Writer, opts IssueOptions) error {
	if err := utils.ValidateStruct(opts); err != nil {
		return err
	}

	tokens, err := auth.NewLocalTokens(opts.Secret, auth.WithIssuer(opts.Issuer))
	if err != nil {
		return err
	}

	identity := &models.Identity{
		ID:    opts.UserID,
		Email: opts.Email,
		Role:  opts.Role,
	}
	if len(opts.Metadata) > 0 {
		identity.Metadata = make(map[string]interface{}, len(opts.Metadata))
		for k, v := range opts.Metadata {
			identity.Metadata[k] = v
		}
	}

	signed, err := tokens.GenerateToken(identity)
	if err != nil {
		return err
	}

	return writeJSON(out, issued{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresIn: int64(tokens.ExpiresIn() / time.Second),
	})
}

// Verify checks opts.Token and writes the resulting identity to out as JSON.
func Verify(out io.Writer, opts VerifyOptions) error {
	if err := utils.ValidateStruct(opts); err != nil {
		return err
	}

	tokens, err := auth.NewLocalTokens(opts.Secret)
	if err != nil {
		return err
	}

	identity, err := tokens.Verify(opts.Token)
	if err != nil {
		return err
	}

	return writeJSON(out, identity)
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
