// Package ui provides terminal UI components for scry.
// This file implements the progress display shown while a research
// session runs.
package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// StepStatus represents the research status of a single plan step.
type StepStatus int

const (
	StepPending   StepStatus = iota // Not yet picked up
	StepSearching                   // Search in flight
	StepDone                        // Findings recorded
	StepFailed                      // Search failed, recorded empty
)

// StepState holds the display state of a single plan step.
type StepState struct {
	ID      int
	Task    string
	Status  StepStatus
	Elapsed time.Duration
}

// ProgressDisplay manages a live-updating terminal progress view.
type ProgressDisplay struct {
	mu          sync.Mutex
	query       string
	phase       string
	steps       []*StepState
	stepIndex   map[int]int // step ID -> index in steps slice
	started     bool
	isTTY       bool
	linesDrawn  int
	startTimes  map[int]time.Time
	lastPrinted map[int]StepStatus // tracks last printed status per step (non-TTY)
}

// NewProgressDisplay creates a ProgressDisplay for the given research query.
func NewProgressDisplay(query string) *ProgressDisplay {
	return &ProgressDisplay{
		query:       query,
		stepIndex:   make(map[int]int),
		startTimes:  make(map[int]time.Time),
		lastPrinted: make(map[int]StepStatus),
		isTTY:       term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// SetPhase updates the workflow phase shown in the header.
func (p *ProgressDisplay) SetPhase(phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.phase = phase
	if p.started {
		p.render()
	}
}

// SetPlan replaces the tracked steps, keeping elapsed times for steps
// that survive a refinement pass.
func (p *ProgressDisplay) SetPlan(steps []StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.steps = p.steps[:0]
	p.stepIndex = make(map[int]int)
	for i := range steps {
		s := steps[i]
		p.stepIndex[s.ID] = len(p.steps)
		p.steps = append(p.steps, &s)
	}
	if p.started {
		p.render()
	}
}

// Start draws the initial progress display.
func (p *ProgressDisplay) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = true
	p.render()
}

// UpdateStep updates a step's status and re-renders the display.
func (p *ProgressDisplay) UpdateStep(id int, status StepStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.stepIndex[id]
	if !ok {
		// Steps can show up before SetPlan is called; register them with
		// a placeholder task.
		p.stepIndex[id] = len(p.steps)
		p.steps = append(p.steps, &StepState{ID: id, Task: fmt.Sprintf("research step %d", id)})
		idx = p.stepIndex[id]
	}

	step := p.steps[idx]
	step.Status = status

	switch status {
	case StepSearching:
		p.startTimes[id] = time.Now()
	case StepDone, StepFailed:
		if start, ok := p.startTimes[id]; ok {
			step.Elapsed = time.Since(start)
		}
	}

	if p.started {
		p.render()
	}
}

// Finish finalizes the display by moving the cursor below all output
// and printing a summary line.
func (p *ProgressDisplay) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isTTY && p.linesDrawn > 0 {
		fmt.Print("\n")
	}

	done := 0
	failed := 0
	for _, s := range p.steps {
		switch s.Status {
		case StepDone:
			done++
		case StepFailed:
			failed++
		}
	}

	total := len(p.steps)
	fmt.Printf("\nResearched: %d/%d steps", done, total)
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	fmt.Println()
}

// render draws or redraws the progress display.
func (p *ProgressDisplay) render() {
	if !p.isTTY {
		p.renderPlain()
		return
	}
	p.renderTTY()
}

// renderTTY draws the progress display using ANSI escape codes for in-place updates.
func (p *ProgressDisplay) renderTTY() {
	// Move cursor up to overwrite previous output.
	if p.linesDrawn > 0 {
		fmt.Printf("\033[%dA", p.linesDrawn)
	}

	var buf strings.Builder

	// Header line.
	header := fmt.Sprintf("☾ scry - %q", p.query)
	if p.phase != "" {
		header += fmt.Sprintf("  (%s)", p.phase)
	}
	buf.WriteString(fmt.Sprintf("\033[2K\033[1m%s\033[0m\n", header))
	buf.WriteString("\033[2K\n")

	// Step lines.
	for _, step := range p.steps {
		buf.WriteString("\033[2K")
		buf.WriteString(formatStepLine(step, p.startTimes))
		buf.WriteString("\n")
	}

	fmt.Print(buf.String())
	p.linesDrawn = len(p.steps) + 2 // header + blank + steps
}

// renderPlain writes non-TTY output (for CI/piping).
// Only prints on status transitions to avoid duplicate lines.
func (p *ProgressDisplay) renderPlain() {
	for _, step := range p.steps {
		if step.Status == StepPending {
			continue
		}
		if prev, seen := p.lastPrinted[step.ID]; seen && prev == step.Status {
			continue
		}
		fmt.Println(formatStepLinePlain(step))
		p.lastPrinted[step.ID] = step.Status
	}
}

// formatStepLine formats a single step line with ANSI colors and status icons.
func formatStepLine(step *StepState, startTimes map[int]time.Time) string {
	icon := statusIcon(step.Status)
	detail := statusDetail(step, startTimes)

	task := step.Task
	if len(task) > 45 {
		task = task[:42] + "..."
	}

	return fmt.Sprintf("  %s step %d  %s  %s", icon, step.ID, task, detail)
}

// formatStepLinePlain formats a step line for non-TTY output.
func formatStepLinePlain(step *StepState) string {
	var status string
	switch step.Status {
	case StepSearching:
		status = "SEARCHING"
	case StepDone:
		status = fmt.Sprintf("DONE [%s]", formatDuration(step.Elapsed))
	case StepFailed:
		status = "FAILED"
	default:
		status = "PENDING"
	}
	return fmt.Sprintf("[%s] step %d: %s", status, step.ID, step.Task)
}

// statusIcon returns the status icon for a step.
func statusIcon(status StepStatus) string {
	switch status {
	case StepDone:
		return "\033[32m✅\033[0m" // green checkmark
	case StepSearching:
		return "\033[33m⏳\033[0m" // yellow hourglass
	case StepFailed:
		return "\033[31m❌\033[0m" // red X
	default:
		return "\033[90m○\033[0m" // dim circle
	}
}

// statusDetail returns the right-side detail text for a step.
func statusDetail(step *StepState, startTimes map[int]time.Time) string {
	switch step.Status {
	case StepDone:
		return fmt.Sprintf("\033[90m[%s]\033[0m", formatDuration(step.Elapsed))
	case StepSearching:
		elapsed := time.Since(startTimes[step.ID])
		return fmt.Sprintf("\033[33m[%s]\033[0m", formatDuration(elapsed))
	case StepFailed:
		return "\033[31m[failed]\033[0m"
	default:
		return "\033[90m[pending]\033[0m"
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", h, m, s)
}
