// run.go implements the "scry run" command which drives a research
// session from query to final answer.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scry-dev/scry/internal/engine"
	"github.com/scry-dev/scry/internal/session"
	"github.com/scry-dev/scry/internal/tui"
	"github.com/scry-dev/scry/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Run a research session",
	Long: `Start a new research session: plan, search, review, and synthesize.
If the review passes and approval is required, the session suspends for
your decision; in a terminal you get an interactive prompt, otherwise
resolve it later with 'scry resume'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	sessionFlag      string
	maxRevisionsFlag int
	thresholdFlag    float64
	noApproveFlag    bool
	noProgressFlag   bool
)

func init() {
	runCmd.Flags().StringVar(&sessionFlag, "session", "", "Session ID (default: generated)")
	runCmd.Flags().IntVar(&maxRevisionsFlag, "max-revisions", 0, "Override the revision cap")
	runCmd.Flags().Float64Var(&thresholdFlag, "threshold", 0, "Override the quality threshold")
	runCmd.Flags().BoolVar(&noApproveFlag, "no-approve", false, "Skip the human approval gate")
	runCmd.Flags().BoolVar(&noProgressFlag, "no-progress", false, "Disable the live progress display")
}

func runRun(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])
	if query == "" {
		return fmt.Errorf("query must not be empty")
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := sessionOptions(rt.cfg)
	if maxRevisionsFlag > 0 {
		opts.MaxRevisions = maxRevisionsFlag
	}
	if thresholdFlag > 0 {
		opts.QualityThreshold = thresholdFlag
	}
	if noApproveFlag {
		opts.HITLEnabled = false
	}

	var display *ui.ProgressDisplay
	if !noProgressFlag {
		display = ui.NewProgressDisplay(query)
		attachProgress(rt, display)
		display.Start()
	}

	s, err := rt.engine.Start(cmd.Context(), query, sessionFlag, opts)
	if display != nil {
		display.Finish()
	}
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

// resolveApprovals loops the interactive decision prompt until the session
// leaves the approval gate. Non-TTY environments leave the session
// suspended and print resume instructions.
func resolveApprovals(ctx context.Context, rt *runtime, s session.Session) (session.Session, error) {
	for s.Status == session.StatusAwaitingApproval {
		if !tui.IsTTY() {
			fmt.Printf("\nSession %s is awaiting approval.\n", s.ID)
			fmt.Printf("Resolve it with: scry resume %s --decision approve\n", s.ID)
			return s, nil
		}

		result, err := tui.RunApproval(s)
		if errors.Is(err, tui.ErrPromptCancelled) {
			fmt.Printf("\nLeft suspended. Resume later with: scry resume %s\n", s.ID)
			return s, nil
		}
		if err != nil {
			return s, err
		}

		s, err = rt.engine.Resume(ctx, s.ID, engine.Decision{Kind: result.Kind, Feedback: result.Feedback})
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

// printOutcome reports the final state of a session to stdout.
func printOutcome(s session.Session) {
	switch s.Status {
	case session.StatusCompleted:
		fmt.Printf("\nSession %s completed (%d revisions)\n", s.ID, s.RevisionCount)
		if Verbose() && s.Review != nil {
			fmt.Printf("Final review score: %.2f\n", s.Review.Score)
		}
		fmt.Println()
		fmt.Println(s.FinalAnswer)
	case session.StatusAborted:
		fmt.Printf("\nSession %s aborted.\n", s.ID)
	case session.StatusAwaitingApproval:
		// Already reported by resolveApprovals.
	default:
		fmt.Printf("\nSession %s is %s.\n", s.ID, s.Status)
	}
}

// describeFailure prints checkpoint context for a failed session before
// returning the error.
func describeFailure(s session.Session, err error) error {
	var engErr *engine.Error
	if errors.As(err, &engErr) && engErr.Kind != engine.KindInvalidState && s.ID != "" {
		fmt.Fprintf(os.Stderr, "Session %s failed; its checkpoints are preserved.\n", s.ID)
		fmt.Fprintf(os.Stderr, "Inspect with: scry checkpoints %s\n", s.ID)
		fmt.Fprintf(os.Stderr, "Retry from a checkpoint with: scry replay %s --seq <n>\n", s.ID)
	}
	return err
}
