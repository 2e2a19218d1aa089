package pipeline

import (
	"strings"

	"github.com/google/uuid"

	"github.com/spherical/groq-vlm/internal/domain"
)

// Document is the result of converting one PDF.
type Document struct {
	Source string
	RunID  uuid.UUID
	Pages  []Page
	Stats  domain.ProcessingStats
}

// Page holds the model output for one page.
type Page struct {
	Number    int
	Width     int
	Height    int
	Content   string
	ImagePath string // empty unless page images were requested
	Err       error
}

// OK reports whether the page converted successfully.
func (p Page) OK() bool {
	return p.Err == nil
}

// ExportToMarkdown joins the content of the successful pages in page order.
func (d *Document) ExportToMarkdown() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if !p.OK() {
			continue
		}
		if c := strings.TrimSpace(p.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Failed returns the pages that produced an error.
func (d *Document) Failed() []Page {
	var out []Page
	for _, p := range d.Pages {
		if !p.OK() {
			out = append(out, p)
		}
	}
	return out
}
