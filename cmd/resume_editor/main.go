// Package main provides the entry point for the resume editor service and its
// operator commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "resume_editor",
	Short: "Cost-capped LaTeX resume editor",
	Long: `resume_editor keeps a single LaTeX resume, applies natural-language edits
through a language model as search/replace patches, compiles the result to PDF
and records revisions in git. Model spend is capped per UTC day.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON or YAML config file (environment variables override it)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
