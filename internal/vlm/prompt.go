package vlm

import (
	"maps"

	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/prompt"
)

// Page is the optional per-page context handed to dynamic prompts.
type Page struct {
	Number int // 1-based
	Width  int // pixels
	Height int // pixels
}

// PromptFunc computes a prompt for a page. page is nil when no page is known.
type PromptFunc func(page *Page) (string, error)

type promptKind int

const (
	promptUnset promptKind = iota
	promptLiteral
	promptDynamic
)

// PromptSpec is either a literal prompt or a function of the page.
type PromptSpec struct {
	kind    promptKind
	literal string
	fn      PromptFunc
}

// LiteralPrompt returns a fixed prompt.
func LiteralPrompt(text string) PromptSpec {
	return PromptSpec{kind: promptLiteral, literal: text}
}

// DynamicPrompt returns a prompt computed per page.
func DynamicPrompt(fn PromptFunc) PromptSpec {
	return PromptSpec{kind: promptDynamic, fn: fn}
}

// TemplatePrompt renders tpl for every page. base is copied, and page_number,
// page_width and page_height are added when a page is present.
func TemplatePrompt(tpl *prompt.Template, base prompt.Context) PromptSpec {
	base = maps.Clone(base)
	return DynamicPrompt(func(page *Page) (string, error) {
		ctx := make(prompt.Context, len(base)+3)
		maps.Copy(ctx, base)
		if page != nil {
			ctx["page_number"] = page.Number
			ctx["page_width"] = page.Width
			ctx["page_height"] = page.Height
		}
		return tpl.Render(ctx)
	})
}

// IsDynamic reports whether the prompt depends on the page.
func (p PromptSpec) IsDynamic() bool {
	return p.kind == promptDynamic
}

// Literal returns the literal text and true for literal prompts.
func (p PromptSpec) Literal() (string, bool) {
	return p.literal, p.kind == promptLiteral
}

// Validate rejects the zero PromptSpec and dynamic prompts without a function.
func (p PromptSpec) Validate() error {
	switch p.kind {
	case promptLiteral:
		return nil
	case promptDynamic:
		if p.fn == nil {
			return domain.ValidationError("dynamic prompt has no function", nil)
		}
		return nil
	default:
		return domain.ValidationError("prompt is required", nil)
	}
}

// Resolve produces the prompt text for page.
func (p PromptSpec) Resolve(page *Page) (string, error) {
	switch p.kind {
	case promptLiteral:
		return p.literal, nil
	case promptDynamic:
		if p.fn == nil {
			return "", domain.ValidationError("dynamic prompt has no function", nil)
		}
		return p.fn(page)
	default:
		return "", domain.ValidationError("prompt is required", nil)
	}
}
