package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-editor/internal/editor"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent revisions of the document",
	RunE:  runHistory,
}

var commitMessage string

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit the current document",
	Long:  `Records the current document as a revision and pushes it when git_push is set. Nothing is committed when the document is unchanged.`,
	RunE:  runCommit,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", editor.DefaultHistoryLimit, "Number of revisions to list")
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "Commit message (default \""+editor.DefaultCommitMessage+"\")")
	rootCmd.AddCommand(historyCmd, commitCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if historyLimit < 1 {
		return fmt.Errorf("--limit must be positive")
	}
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	parts, err := a.buildEditor(cmd.Context(), false)
	if err != nil {
		return err
	}
	revs, err := parts.editor.History(cmd.Context(), historyLimit)
	if err != nil {
		return describeFailure(err)
	}
	out := cmd.OutOrStdout()
	for _, r := range revs {
		fmt.Fprintf(out, "%.7s  %s  %-20s  %s\n", r.ID, r.Timestamp.Format("2006-01-02 15:04"), r.Author, r.Message)
	}
	return nil
}

func runCommit(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	parts, err := a.buildEditor(cmd.Context(), false)
	if err != nil {
		return err
	}
	result, err := parts.editor.Commit(cmd.Context(), commitMessage)
	if err != nil {
		return describeFailure(err)
	}
	return printJSON(cmd.OutOrStdout(), result)
}
