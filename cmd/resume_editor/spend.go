package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var spendJSON bool

var spendCmd = &cobra.Command{
	Use:   "spend",
	Short: "Show today's model spend against the daily limit",
	RunE:  runSpend,
}

func init() {
	spendCmd.Flags().BoolVar(&spendJSON, "json", false, "Print the status as JSON")
	rootCmd.AddCommand(spendCmd)
}

func runSpend(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	spend, err := a.ledger(cmd.Context())
	if err != nil {
		return err
	}
	status, err := spend.Status(cmd.Context())
	if err != nil {
		return err
	}
	if spendJSON {
		return printJSON(cmd.OutOrStdout(), status)
	}
	state := "ok"
	if status.Exceeded {
		state = "limit reached"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  $%.4f of $%.2f (remaining $%.4f, %s)\n",
		status.Day, status.Total, status.Limit, status.Remaining, state)
	return nil
}
