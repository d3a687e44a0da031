package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "jobgate",
		Short:         "Operator tooling for the jobgate pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(budgetCmd())
	rootCmd.AddCommand(secretCmd())
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(tenantsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
