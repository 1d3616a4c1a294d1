package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/feedsync/internal/output"
	"github.com/marcus/feedsync/internal/syncclient"
	"github.com/marcus/feedsync/internal/syncconfig"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Manage API credentials",
	GroupID: "system",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a bearer token and actor id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		actor, _ := cmd.Flags().GetString("actor")
		if token == "" || actor == "" {
			err := errors.New("--token and --actor are required")
			output.Error("%v", err)
			return err
		}

		serverURL := getServerURL(cmd)
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if _, err := syncclient.New(serverURL).HealthCheck(ctx); err != nil {
			output.Warning("server %s not reachable: %v", serverURL, err)
		}

		creds := &syncconfig.AuthCredentials{
			Token:     token,
			ActorID:   actor,
			ServerURL: serverURL,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := syncconfig.SaveAuth(creds); err != nil {
			output.Error("save credentials: %v", err)
			return err
		}

		output.Success("Logged in as %s", actor)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := syncconfig.ClearAuth(); err != nil {
			output.Error("logout: %v", err)
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := syncconfig.LoadAuth()
		if err != nil {
			output.Error("load auth: %v", err)
			return err
		}

		if creds == nil || creds.Token == "" {
			fmt.Println("Not logged in.")
			return nil
		}

		tokenPrefix := creds.Token
		if len(tokenPrefix) > 8 {
			tokenPrefix = tokenPrefix[:8] + "..."
		}

		fmt.Printf("Actor:  %s\n", creds.ActorID)
		fmt.Printf("Server: %s\n", creds.ServerURL)
		fmt.Printf("Token:  %s\n", tokenPrefix)
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)

	authLoginCmd.Flags().String("token", "", "Bearer token for the content API")
	authLoginCmd.Flags().String("actor", "", "Actor id the token belongs to")
}
