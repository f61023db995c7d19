package session

import (
	"context"

	"github.com/hazyhaar/easyapply/actions"
	"github.com/hazyhaar/easyapply/task"
)

// Engine is the automation backend driving the job-search-and-apply
// loop. It receives the composed task and the action set and reports
// back when the session is over. Any backend satisfying this interface
// can be substituted without touching the driver.
type Engine interface {
	RunSession(ctx context.Context, spec *task.Spec, acts *actions.Set) (*Result, error)
}

// Result summarises one finished session.
type Result struct {
	// Applied is the number of applications the agent reported submitting.
	Applied int `json:"applied"`

	// Skipped is the number of jobs the agent reported skipping.
	Skipped int `json:"skipped"`

	// Summary is the agent's closing note.
	Summary string `json:"summary,omitempty"`
}
