// resume.go implements the "scry resume" command for resolving a
// suspended session's approval gate.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scry-dev/scry/internal/engine"
	"github.com/scry-dev/scry/internal/session"
	"github.com/scry-dev/scry/internal/tui"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resolve a suspended session",
	Long: `Resume a session that is awaiting approval. In a terminal the decision
is made through an interactive prompt; otherwise pass --decision
(approve, feedback, or reject), with --feedback text for feedback.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

var (
	decisionFlag string
	feedbackFlag string
)

func init() {
	resumeCmd.Flags().StringVar(&decisionFlag, "decision", "", "Decision: approve, feedback, or reject")
	resumeCmd.Flags().StringVar(&feedbackFlag, "feedback", "", "Feedback text (required with --decision feedback)")
}

func runResume(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID := args[0]
	s, err := rt.engine.Status(sessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	if s.Status != session.StatusAwaitingApproval {
		return fmt.Errorf("session %s is %s, not awaiting approval", sessionID, s.Status)
	}

	decision := engine.Decision{Kind: decisionFlag, Feedback: feedbackFlag}
	if decisionFlag == "" {
		result, promptErr := tui.RunApproval(s)
		if errors.Is(promptErr, tui.ErrNotInteractive) {
			return fmt.Errorf("no terminal attached; use --decision approve|feedback|reject")
		}
		if errors.Is(promptErr, tui.ErrPromptCancelled) {
			fmt.Println("No decision made; session stays suspended.")
			return nil
		}
		if promptErr != nil {
			return promptErr
		}
		decision = engine.Decision{Kind: result.Kind, Feedback: result.Feedback}
	}

	s, err = rt.engine.Resume(cmd.Context(), sessionID, decision)
	if err != nil {
		return describeFailure(s, err)
	}

	s, err = resolveApprovals(cmd.Context(), rt, s)
	if err != nil {
		return describeFailure(s, err)
	}

	printOutcome(s)
	return nil
}
