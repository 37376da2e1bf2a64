// replay.go implements the "scry replay" command: continue execution
// from a historical checkpoint.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scry-dev/scry/internal/session"
)

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Re-run a session from a checkpoint",
	Long: `Restore the session snapshot at --seq and continue execution from it.
Existing checkpoints are never modified; the replayed run appends new
ones after the current maximum, so both histories stay inspectable.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var replaySeqFlag int

func init() {
	replayCmd.Flags().IntVar(&replaySeqFlag, "seq", -1, "Sequence number to replay from (required)")
	replayCmd.MarkFlagRequired("seq")
}

func runReplay(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID := args[0]
	fmt.Printf("Replaying session %s from checkpoint %d...\n", sessionID, replaySeqFlag)

	s, err := rt.engine.Replay(cmd.Context(), sessionID, replaySeqFlag)
	if err != nil {
		return describeFailure(s, err)
	}

	if s.Status == session.StatusAwaitingApproval {
		s, err = resolveApprovals(cmd.Context(), rt, s)
		if err != nil {
			return describeFailure(s, err)
		}
	}

	printOutcome(s)
	return nil
}
