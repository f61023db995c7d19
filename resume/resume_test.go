package resume

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeResume(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write resume: %v", err)
	}
	return path
}

func TestLoadText(t *testing.T) {
	path := writeResume(t, "cv.txt", "Jane Doe\nSoftware Engineer\n\nGo, SQL, Kubernetes.\n")
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Title != "Jane Doe" {
		t.Errorf("title: got %q", p.Title)
	}
	if !strings.Contains(p.Text, "Kubernetes") {
		t.Errorf("text truncated: %q", p.Text)
	}
	if p.Pages != 1 {
		t.Errorf("pages: got %d", p.Pages)
	}
}

func TestLoadMarkdown(t *testing.T) {
	path := writeResume(t, "cv.md", "# Jane Doe\n\nBackend engineer.\n")
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Title != "# Jane Doe" {
		t.Errorf("title: got %q", p.Title)
	}
}

func TestLoadEmptyTextFails(t *testing.T) {
	path := writeResume(t, "cv.txt", "   \n\n")
	if _, err := Load(path); !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeResume(t, "cv.docx", "whatever")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExcerptCutsOnWordBoundary(t *testing.T) {
	p := &Profile{Text: "alpha beta gamma delta"}
	got := p.Excerpt(12)
	if got != "alpha beta" {
		t.Errorf("excerpt: got %q", got)
	}
	if p.Excerpt(1000) != p.Text {
		t.Error("excerpt should return full text when under the limit")
	}
}

func TestTextFromStream(t *testing.T) {
	// WHAT: Content-stream text operators produce readable text.
	// WHY: This is the whole of PDF extraction; operator handling must
	// not drop or scramble characters.
	stream := []byte("BT\n(Jane Doe) Tj\n0 -14 Td\n[(Software) -250 (Engineer)] TJ\nT*\n(Go \\(backend\\)) Tj\nET\n")
	got := textFromStream(stream)
	for _, want := range []string{"Jane Doe", "Software", "Engineer", "Go (backend)"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestDecodePDFStringOctal(t *testing.T) {
	if got := decodePDFString([]byte(`a\040b`)); got != "a b" {
		t.Errorf("octal escape: got %q", got)
	}
	if got := decodePDFString([]byte(`line\nnext`)); got != "line\nnext" {
		t.Errorf("newline escape: got %q", got)
	}
}

func TestCheckQuality(t *testing.T) {
	good := strings.Repeat("experienced backend engineer shipping services ", 10)
	if err := checkQuality(good); err != nil {
		t.Errorf("good text rejected: %v", err)
	}

	if err := checkQuality("too short"); err == nil {
		t.Error("short text should fail the quality gate")
	}

	garbage := strings.Repeat(" ", 100)
	if err := checkQuality(garbage); err == nil {
		t.Error("PUA-dominated text should fail the quality gate")
	}
}
