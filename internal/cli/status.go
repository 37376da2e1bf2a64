// status.go implements the "scry status" command showing session progress.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scry-dev/scry/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show session progress",
	Long: `Without arguments, list all known sessions. With a session ID, show
that session's plan, findings, review score, and current state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openStoreOnly()
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 0 {
		infos, err := store.Sessions()
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(infos) == 0 {
			fmt.Println("No sessions found. Start one with: scry run \"your question\"")
			return nil
		}
		fmt.Println("Sessions")
		fmt.Println()
		for _, info := range infos {
			fmt.Printf("  %-36s  %-18s  seq %d  %s\n",
				info.SessionID, info.Status, info.Seq, info.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	}

	cp, err := store.Latest(args[0])
	if err != nil {
		return fmt.Errorf("session %s: %w", args[0], err)
	}
	s := cp.Session

	fmt.Printf("Session: %s\n", s.ID)
	fmt.Printf("Query:   %s\n", s.Query)
	fmt.Printf("Status:  %s (seq %d)\n", s.Status, cp.Seq)
	fmt.Printf("Revisions: %d/%d\n", s.RevisionCount, s.Options.MaxRevisions)
	fmt.Println()

	if len(s.Plan) > 0 {
		fmt.Println("Plan:")
		for _, step := range s.Plan {
			mark := " "
			if step.Done {
				mark = "x"
			}
			line := fmt.Sprintf("  [%s] %d. %s", mark, step.ID, step.Task)
			if f, ok := s.Findings[step.ID]; ok {
				line += fmt.Sprintf("  (%d results)", len(f.Results))
			}
			fmt.Println(line)
		}
		fmt.Println()
	}

	if s.Review != nil {
		fmt.Printf("Review score: %.2f (threshold %.2f)\n", s.Review.Score, s.Options.QualityThreshold)
		if Verbose() && s.Review.Feedback != "" {
			fmt.Printf("Feedback: %s\n", s.Review.Feedback)
		}
		fmt.Println()
	}

	switch s.Status {
	case session.StatusAwaitingApproval:
		fmt.Printf("Awaiting approval. Resolve with: scry resume %s\n", s.ID)
	case session.StatusCompleted:
		fmt.Println(s.FinalAnswer)
	case session.StatusFailed:
		if s.Failure != nil {
			fmt.Printf("Failed: %s: %s\n", s.Failure.Kind, s.Failure.Message)
		}
		fmt.Printf("Retry from a checkpoint with: scry replay %s --seq <n>\n", s.ID)
	}

	return nil
}
