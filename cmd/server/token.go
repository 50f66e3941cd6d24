package server

import (
	"fmt"
	"time"

	"pkgsync/cmd/root"
	"pkgsync/internal/middleware"
	"pkgsync/internal/syncerr"

	"github.com/spf13/cobra"
)

var (
	optTokenSubject string
	optTokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发上传令牌",
	Long: `Issue a bearer token accepted by a mirror whose server.token_secret is set.
Put it into storage.token on the machines that upload packages.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := root.Config().Server.TokenSecret
		if secret == "" {
			return syncerr.Newf(syncerr.InvalidInput, "issue token", "server.token_secret", "no token secret configured")
		}
		token, err := middleware.IssueToken(secret, optTokenSubject, optTokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&optTokenSubject, "subject", "builder", "Name the token is issued to")
	tokenCmd.Flags().DurationVar(&optTokenTTL, "ttl", 0, "Token lifetime, 0 never expires")
	root.RootCmd.AddCommand(tokenCmd)
}
