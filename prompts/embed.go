package prompts

import _ "embed"

//go:embed planner.md
var PlannerSystemPrompt string

//go:embed reviewer.md
var ReviewerSystemPrompt string

//go:embed writer.md
var WriterSystemPrompt string
