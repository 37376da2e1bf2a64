// continue.go implements the "scry continue" command for picking up a
// session interrupted mid-run (crash, Ctrl-C, lost connection).
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scry-dev/scry/internal/session"
)

var continueCmd = &cobra.Command{
	Use:   "continue <session-id>",
	Short: "Continue an interrupted session",
	Long: `Continue a session from its latest checkpoint. The node that was
interrupted re-executes in full; completed steps keep their findings.`,
	Args: cobra.ExactArgs(1),
	RunE: runContinue,
}

func runContinue(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID := args[0]
	fmt.Printf("Continuing session %s from its latest checkpoint...\n", sessionID)

	s, err := rt.engine.Continue(cmd.Context(), sessionID)
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
