package actions

import (
	"context"
	"encoding/json"
	"strings"
)

// Page is the narrow browser capability the page-bound actions need. The
// browser package provides the Rod-backed implementation; tests use a
// fake.
type Page interface {
	// Navigate loads url in the session tab and waits for the page load.
	Navigate(ctx context.Context, url string) error

	// HTML returns the current DOM serialised as outer HTML.
	HTML(ctx context.Context) (string, error)

	// URL returns the current page URL.
	URL() string

	// SetFileInput sets path on the file input matching selector so the
	// agent can attach the resume to an application form.
	SetFileInput(ctx context.Context, selector, path string) error
}

// BindPage registers open_url, read_page and upload_resume against the
// live session tab. resumePath is the file offered to upload_resume.
func (s *Set) BindPage(page Page, resumePath string) {
	s.Register(Action{
		Name:        "open_url",
		Description: "Navigate the session tab to a URL, for example a job listing. Stays within the job board.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute URL to open"},
		}, []string{"url"}),
	}, func(ctx context.Context, args json.RawMessage) Result {
		var p struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return failed("invalid arguments: %v", err)
		}
		if p.URL == "" {
			return failed("url is required")
		}
		if err := page.Navigate(ctx, p.URL); err != nil {
			return failed("navigate %s: %v", p.URL, err)
		}
		s.logger.Debug("navigated", "url", p.URL)
		return ok("opened %s", p.URL)
	})

	s.Register(Action{
		Name:        "read_page",
		Description: "Read the current page as markdown. Use it to understand a job listing or an application form before acting.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, args json.RawMessage) Result {
		html, err := page.HTML(ctx)
		if err != nil {
			return failed("read page: %v", err)
		}
		md := htmlToMarkdown(html)
		if strings.TrimSpace(md) == "" {
			return failed("page %s produced no readable content", page.URL())
		}
		return ok("%s", md)
	})

	s.Register(Action{
		Name:        "upload_resume",
		Description: "Attach the candidate's resume file to a file input on the current page. Call when an application form asks for a resume upload. If the default input is not found, retry with the selector of the upload element.",
		InputSchema: inputSchema(map[string]any{
			"selector": map[string]any{"type": "string", "description": "CSS selector of the file input; defaults to input[type=file]"},
		}, nil),
	}, func(ctx context.Context, args json.RawMessage) Result {
		var p struct {
			Selector string `json:"selector"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return failed("invalid arguments: %v", err)
		}
		if p.Selector == "" {
			p.Selector = `input[type="file"]`
		}
		if err := page.SetFileInput(ctx, p.Selector, resumePath); err != nil {
			return failed("upload to %q: %v", p.Selector, err)
		}
		s.logger.Info("resume uploaded", "selector", p.Selector, "path", resumePath)
		return ok("uploaded resume via %q", p.Selector)
	})
}
