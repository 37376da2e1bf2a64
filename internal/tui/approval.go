package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/scry-dev/scry/internal/session"
)

// ErrNotInteractive is returned when the approval prompt is requested
// without a terminal attached.
var ErrNotInteractive = errors.New("approval prompt requires a terminal")

// ErrPromptCancelled is returned when the user exits the prompt without
// making a decision.
var ErrPromptCancelled = errors.New("approval prompt cancelled")

// ApprovalResult is the decision made in the approval prompt.
type ApprovalResult struct {
	Kind     string // approve | feedback | reject
	Feedback string
}

// approvalModel drives the three-way decision prompt shown when a session
// suspends for human review.
type approvalModel struct {
	sess      session.Session
	choices   []string
	cursor    int
	input     textinput.Model
	entering  bool // feedback text entry active
	result    *ApprovalResult
	cancelled bool
}

func newApprovalModel(sess session.Session) approvalModel {
	input := textinput.New()
	input.Placeholder = "What should the next pass focus on?"
	input.CharLimit = 500
	input.Width = 60

	choices := []string{session.DecisionApprove, session.DecisionFeedback, session.DecisionReject}
	if sess.Pending != nil && len(sess.Pending.Options) > 0 {
		choices = sess.Pending.Options
	}
	return approvalModel{sess: sess, choices: choices, input: input}
}

func (m approvalModel) Init() tea.Cmd {
	return nil
}

func (m approvalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.entering {
		switch keyMsg.String() {
		case KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		case KeyEsc:
			m.entering = false
			m.input.Blur()
			return m, nil
		case KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.result = &ApprovalResult{Kind: session.DecisionFeedback, Feedback: text}
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch keyMsg.String() {
	case KeyCtrlC, KeyEsc, "q":
		m.cancelled = true
		return m, tea.Quit
	case KeyUp, "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case KeyDown, "j":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case KeyEnter:
		choice := m.choices[m.cursor]
		if choice == session.DecisionFeedback {
			m.entering = true
			m.input.Focus()
			return m, textinput.Blink
		}
		m.result = &ApprovalResult{Kind: choice}
		return m, tea.Quit
	}
	return m, nil
}

func (m approvalModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Research review") + "\n\n")
	b.WriteString(fmt.Sprintf("Query: %s\n", m.sess.Query))
	if m.sess.Review != nil {
		b.WriteString(fmt.Sprintf("Score: %s\n", renderScore(m.sess.Review.Score, m.sess.Options.QualityThreshold)))
		if m.sess.Review.Feedback != "" {
			b.WriteString(fmt.Sprintf("Reviewer: %s\n", m.sess.Review.Feedback))
		}
	}
	b.WriteString(fmt.Sprintf("Revisions used: %d/%d\n\n", m.sess.RevisionCount, m.sess.Options.MaxRevisions))

	if m.entering {
		b.WriteString("Feedback for the next research pass:\n")
		b.WriteString(m.input.View() + "\n\n")
		b.WriteString(DimStyle.Render("enter to submit, esc to go back") + "\n")
		return b.String()
	}

	for i, choice := range m.choices {
		line := "  " + choiceLabel(choice)
		if i == m.cursor {
			line = SelectedStyle.Render("> " + choiceLabel(choice))
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + DimStyle.Render("up/down to move, enter to select, q to cancel") + "\n")
	return b.String()
}

func choiceLabel(choice string) string {
	switch choice {
	case session.DecisionApprove:
		return "Approve - write the final answer"
	case session.DecisionFeedback:
		return "Feedback - one more research pass"
	case session.DecisionReject:
		return "Reject - abort the session"
	default:
		return choice
	}
}

func renderScore(score, threshold float64) string {
	text := fmt.Sprintf("%.2f", score)
	switch {
	case score >= threshold:
		return SuccessStyle.Render(text)
	case score >= threshold-0.2:
		return WarningStyle.Render(text)
	default:
		return ErrorStyle.Render(text)
	}
}

// RunApproval shows the decision prompt for a suspended session and
// returns the user's choice. Non-TTY environments get ErrNotInteractive;
// callers should point users at the --decision flag instead.
func RunApproval(sess session.Session) (ApprovalResult, error) {
	if !IsTTY() {
		return ApprovalResult{}, ErrNotInteractive
	}
	p := tea.NewProgram(newApprovalModel(sess))
	final, err := p.Run()
	if err != nil {
		return ApprovalResult{}, err
	}
	m, ok := final.(approvalModel)
	if !ok || m.result == nil {
		return ApprovalResult{}, ErrPromptCancelled
	}
	return *m.result, nil
}
