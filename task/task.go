// Package task composes the natural-language instruction bundle handed to
// the automation engine for one run. Composition is pure: identical
// parameters always render byte-identical text, so a run's instructions
// can be diffed and reviewed before any browser session starts.
package task

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

//go:embed prompts/session_task.md
var sessionTaskRaw string

// sessionTaskTemplate is parsed once at package init and reused on every
// Compose call.
var sessionTaskTemplate = template.Must(template.New("session_task").Parse(sessionTaskRaw))

// Params are the inputs to task composition.
type Params struct {
	// Role is the configured search keyword, e.g. "machine learning intern".
	Role string

	// Location optionally narrows the search.
	Location string

	// MaxApplications is the stop condition for the session.
	MaxApplications int

	// ResumeExcerpt is the candidate context included verbatim.
	ResumeExcerpt string

	// AppliedIDs are job identifiers the agent must never re-apply to.
	// Order does not matter; they are sorted before rendering.
	AppliedIDs []string
}

// Spec is the run-scoped instruction bundle. Built once per run, never
// persisted.
type Spec struct {
	Text            string
	Role            string
	MaxApplications int
}

// Compose renders the instruction text for one session.
func Compose(p Params) (*Spec, error) {
	if strings.TrimSpace(p.Role) == "" {
		return nil, fmt.Errorf("task: role is required")
	}
	if p.MaxApplications <= 0 {
		p.MaxApplications = 1
	}

	// Sorted copy so the caller's slice order never leaks into the text.
	ids := make([]string, len(p.AppliedIDs))
	copy(ids, p.AppliedIDs)
	sort.Strings(ids)
	p.AppliedIDs = ids

	var sb strings.Builder
	if err := sessionTaskTemplate.Execute(&sb, p); err != nil {
		return nil, fmt.Errorf("task: render: %w", err)
	}

	return &Spec{
		Text:            sb.String(),
		Role:            p.Role,
		MaxApplications: p.MaxApplications,
	}, nil
}
