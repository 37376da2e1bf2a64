// export.go implements the "scry export" command: render a session as a
// markdown research report.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scry-dev/scry/internal/report"
)

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session as a markdown report",
	Long: `Render the session's latest checkpoint as a markdown document with the
plan, findings, review verdict, answer, and sources. Writes to stdout
unless --out is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var outFlag string

func init() {
	exportCmd.Flags().StringVar(&outFlag, "out", "", "Write the report to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := openStoreOnly()
	if err != nil {
		return err
	}
	defer store.Close()

	cp, err := store.Latest(args[0])
	if err != nil {
		return fmt.Errorf("session %s: %w", args[0], err)
	}

	doc := report.FormatMarkdown(report.Generate(cp.Session))

	if outFlag == "" {
		fmt.Print(doc)
		return nil
	}
	if err := os.WriteFile(outFlag, []byte(doc), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Printf("Wrote report to %s\n", outFlag)
	return nil
}
