package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mentorlounge/shared/auth"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the dev services",
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "", "Token subject (user id)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "mentee", "Role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	token, err := auth.NewSigner(cfg.Server.JWTSecret).GenerateToken(tokenSubject, tokenRole, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
