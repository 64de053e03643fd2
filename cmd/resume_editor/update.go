package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-editor/internal/editor"
)

var (
	updateConversation string
	updateJobFile      string
	updateJobURL       string
	updateVerbose      bool
)

var updateCmd = &cobra.Command{
	Use:   "update <instruction>",
	Short: "Apply a natural-language edit to the resume",
	Long: `Runs one edit against the configured document: checks the daily budget,
asks the model for patches, applies them, compiles, and prints the result as
JSON. Stage transitions are logged to stderr with --verbose.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateConversation, "conversation", "", "Conversation ID to continue")
	updateCmd.Flags().StringVarP(&updateJobFile, "job", "j", "", "Path to a job posting text file (mutually exclusive with --job-url)")
	updateCmd.Flags().StringVar(&updateJobURL, "job-url", "", "URL to fetch a job posting from (mutually exclusive with --job)")
	updateCmd.Flags().BoolVarP(&updateVerbose, "verbose", "v", false, "Print stage transitions")
	updateCmd.MarkFlagsMutuallyExclusive("job", "job-url")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	req := editor.UpdateRequest{
		Instruction:    strings.Join(args, " "),
		ConversationID: updateConversation,
		JobURL:         updateJobURL,
	}
	if updateJobFile != "" {
		data, err := os.ReadFile(updateJobFile)
		if err != nil {
			return fmt.Errorf("failed to read job file: %w", err)
		}
		req.JobDescription = string(data)
	}

	ctx := cmd.Context()
	parts, err := a.buildEditor(ctx, true)
	if err != nil {
		return err
	}

	var observe editor.Observer
	if updateVerbose {
		observe = stagePrinter(cmd.ErrOrStderr())
	}
	result, err := parts.editor.Update(ctx, req, observe)
	if err != nil {
		return describeFailure(err)
	}
	return printJSON(cmd.OutOrStdout(), result)
}

// stagePrinter writes one line per stage transition.
func stagePrinter(w io.Writer) editor.Observer {
	return func(ev editor.Event) {
		if ev.Message != "" {
			fmt.Fprintf(w, "[%s] %s\n", ev.Stage, ev.Message)
			return
		}
		fmt.Fprintf(w, "[%s]\n", ev.Stage)
	}
}

// describeFailure folds the diagnostics of an edit failure into the error
// cobra prints.
func describeFailure(err error) error {
	var edErr *editor.Error
	if !errors.As(err, &edErr) {
		return err
	}
	var b strings.Builder
	b.WriteString(err.Error())
	for _, d := range edErr.Details {
		b.WriteString("\n  ")
		b.WriteString(d)
	}
	if edErr.Raw != "" {
		b.WriteString("\nmodel output:\n")
		b.WriteString(edErr.Raw)
	}
	if edErr.Diagnostics != "" {
		b.WriteString("\ncompiler log:\n")
		b.WriteString(edErr.Diagnostics)
	}
	return fmt.Errorf("%s", b.String())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
