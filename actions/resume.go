package actions

import (
	"context"
	"encoding/json"

	"github.com/hazyhaar/easyapply/resume"
)

// BindResume registers read_resume, giving the agent the candidate
// context it needs to fill application forms.
func (s *Set) BindResume(p *resume.Profile) {
	s.Register(Action{
		Name:        "read_resume",
		Description: "Read the candidate's resume text for context when filling application forms. Call once early in the session and keep the content in mind.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, args json.RawMessage) Result {
		s.logger.Info("resume read", "path", p.Path, "chars", len(p.Text))
		return ok("%s", p.Text)
	})
}
