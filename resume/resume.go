// Package resume loads the operator's resume and extracts its text so the
// agent can fill application forms from it. PDF resumes go through
// structure-aware pdfcpu extraction; plain-text and markdown resumes are
// read as-is.
package resume

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnreadable is returned when no usable text can be extracted, for
// example from a scanned (image-only) PDF.
var ErrUnreadable = errors.New("resume: no usable text")

// Profile is the loaded resume.
type Profile struct {
	// Path is the source file.
	Path string

	// Title is the first non-empty line, typically the candidate's name.
	Title string

	// Text is the full extracted text, whitespace-normalised.
	Text string

	// Pages is the page count for PDFs, 1 otherwise.
	Pages int
}

// Load reads the resume at path. Supported formats: .pdf, .txt, .md.
func Load(path string) (*Profile, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return loadPDF(path)
	case ".txt", ".md", "":
		return loadText(path)
	default:
		return nil, fmt.Errorf("resume: unsupported format %q (use .pdf, .txt or .md)", filepath.Ext(path))
	}
}

func loadText(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resume: read %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrUnreadable, path)
	}
	return &Profile{
		Path:  path,
		Title: firstLine(text),
		Text:  text,
		Pages: 1,
	}, nil
}

// firstLine returns the first non-empty line, capped at 200 runes.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > 200 {
			return string(r[:200])
		}
		return line
	}
	return ""
}

// Excerpt returns at most n runes of the resume text, cut on a word
// boundary. Used to bound how much resume context enters the task prompt.
func (p *Profile) Excerpt(n int) string {
	r := []rune(p.Text)
	if len(r) <= n {
		return p.Text
	}
	cut := string(r[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}
