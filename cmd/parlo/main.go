package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/parloteam/parlo/internal/auth"
	"github.com/parloteam/parlo/internal/config"
)

var version = "0.3.0"

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "parlo",
		Short: "Parlo: multimodal chat assistant gateway",
		Long:  "Parlo bridges a chat platform webhook to reasoning, transcription and vision collaborators.",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml")

	root.AddCommand(serveCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook gateway",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

// tokenCmd mints a callback token for the background job system.
func tokenCmd() *cobra.Command {
	var caller string
	var expiresIn time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a job-completion callback token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			signed, expiresAt, err := auth.GenerateCallbackToken(caller, cfg.Auth.JWTSecret, expiresIn)
			if err != nil {
				return err
			}
			fmt.Printf("%s\nexpires: %s\n", signed, expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "job-system", "token subject")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 24*time.Hour, "token lifetime")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
