package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "meatengine"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Protein consumption reconciliation and weekly count compliance",
		Long: `meatengine reconciles what each store used of every protein against
its per-guest targets, prices the difference, and locks stores out of
operational endpoints when the weekly inventory count is overdue.

Configuration comes from the environment (or a .env file).`,
		SilenceUsage: true,
	}

	cmd.AddCommand(serveCmd(), reconcileCmd(), openWindowCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})
	return cmd
}
