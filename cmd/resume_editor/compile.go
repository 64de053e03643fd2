package main

import (
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the current document and publish the PDF",
	Long:  `Typesets the configured document and stores the PDF in the artifact store. The model is not called.`,
	RunE:  runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	parts, err := a.buildEditor(cmd.Context(), false)
	if err != nil {
		return err
	}
	result, err := parts.editor.Compile(cmd.Context())
	if err != nil {
		return describeFailure(err)
	}
	return printJSON(cmd.OutOrStdout(), result)
}
