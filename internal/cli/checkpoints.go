// checkpoints.go implements the "scry checkpoints" command for
// inspecting a session's history.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints <session-id>",
	Short: "List a session's checkpoints",
	Long: `List every checkpoint of a session, oldest first. With --seq, print
the full session snapshot at that sequence number as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckpoints,
}

var seqFlag int

func init() {
	checkpointsCmd.Flags().IntVar(&seqFlag, "seq", -1, "Show the full snapshot at this sequence number")
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	store, err := openStoreOnly()
	if err != nil {
		return err
	}
	defer store.Close()

	sessionID := args[0]

	if seqFlag >= 0 {
		cp, err := store.Restore(sessionID, seqFlag)
		if err != nil {
			return fmt.Errorf("checkpoint %d of session %s: %w", seqFlag, sessionID, err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cp)
	}

	summaries, err := store.List(sessionID)
	if err != nil {
		return fmt.Errorf("listing checkpoints: %w", err)
	}
	if len(summaries) == 0 {
		return fmt.Errorf("no checkpoints for session %s", sessionID)
	}

	fmt.Printf("Checkpoints for %s\n\n", sessionID)
	for _, cp := range summaries {
		fmt.Printf("  %3d  %-12s  %-18s  %s\n",
			cp.Seq, cp.Node, cp.Status, cp.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
