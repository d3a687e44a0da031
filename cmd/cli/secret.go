package main

import (
	"fmt"
	"os"

	"github.com/marcelsud/jobgate/config"
	"github.com/marcelsud/jobgate/tenants"
	"github.com/marcelsud/jobgate/webhook/signature"
	"github.com/spf13/cobra"
)

func secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Signing secret helpers",
	}

	var size int
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random hex signing secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := signature.GenerateSecret(size)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	generate.Flags().IntVarP(&size, "bytes", "b", 32, "Secret size in bytes")

	cmd.AddCommand(generate)
	return cmd
}

func signCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Print the signature header value for a request body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading body: %w", err)
			}
			if secret == "" {
				cfg, err := config.GetConfig()
				if err != nil {
					return err
				}
				secret = cfg.WebhookSecret
			}
			if secret == "" {
				return &signature.ConfigurationError{Reason: "no secret given and WEBHOOK_SECRET is empty"}
			}
			fmt.Fprintln(cmd.OutOrStdout(), signature.BuildSignatureHeader(body, secret))
			return nil
		},
	}
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "Signing secret (defaults to WEBHOOK_SECRET)")
	return cmd
}

func tenantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Tenant registry helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a tenants file (defaults to TENANTS_FILE)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.GetConfig()
				if err != nil {
					return err
				}
				path = cfg.TenantsFile
			}

			loader := tenants.NewLoader()
			if err := loader.Load(path); err != nil {
				return err
			}
			for _, t := range loader.List() {
				state := "enabled"
				if !t.Enabled {
					state = "disabled"
				}
				secret := "shared"
				if t.SigningSecret != "" {
					secret = "own"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tclass=%s\t%s\tsecret=%s\n", t.TenantID, t.QueueClass, state, secret)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d tenants OK\n", len(loader.List()))
			return nil
		},
	})
	return cmd
}
