// Package prompt loads and renders Jinja-style prompt templates.
//
// Templates use pongo2 syntax ({{ var }}, {% if %}, {% include %}). Variables
// missing from the context render as the empty string, booleans render as
// True / False, output is not HTML-escaped and a single trailing newline is
// dropped from each template source.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/spherical/groq-vlm/internal/domain"
)

func init() {
	pongo2.SetAutoescape(false)
}

// Context holds the variables available to a template.
type Context map[string]any

// Template is a parsed template. It is immutable and safe for concurrent Render calls.
type Template struct {
	name string
	tpl  *pongo2.Template
}

// Name returns the path the template was loaded from, or "<string>" for inline templates.
func (t *Template) Name() string {
	return t.name
}

// Render executes the template against ctx.
func (t *Template) Render(ctx Context) (string, error) {
	out, err := t.tpl.Execute(pongo2.Context(ctx))
	if err != nil {
		return "", domain.TemplateRenderError(fmt.Sprintf("failed to render template %s", t.name), err)
	}
	return out, nil
}

// trimTrailingNewline drops a single trailing line break from template source.
func trimTrailingNewline(src string) string {
	if strings.HasSuffix(src, "\r\n") {
		return src[:len(src)-2]
	}
	return strings.TrimSuffix(strings.TrimSuffix(src, "\n"), "\r")
}

// Renderer loads templates from files or strings.
type Renderer struct {
	fsys FileSystem
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFileSystem replaces the filesystem used by LoadFile.
func WithFileSystem(fsys FileSystem) Option {
	return func(r *Renderer) {
		r.fsys = fsys
	}
}

// NewRenderer creates a renderer backed by the OS filesystem unless overridden.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{fsys: OSFileSystem{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadFile parses the template at path. A missing path fails before any read.
func (r *Renderer) LoadFile(path string) (*Template, error) {
	info, err := r.fsys.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.TemplateNotFoundError(path)
		}
		return nil, domain.IOError(fmt.Sprintf("cannot access template: %s", path), err)
	}
	if info.IsDir() {
		return nil, domain.TemplateNotFoundError(path)
	}

	// A fresh set per load keeps parsing free of shared state.
	set := pongo2.NewSet("prompt", &loader{fsys: r.fsys})
	tpl, err := set.FromFile(path)
	if err != nil {
		return nil, domain.TemplateRenderError(fmt.Sprintf("failed to parse template %s", path), err)
	}
	return &Template{name: path, tpl: tpl}, nil
}

// LoadString parses an inline template.
func (r *Renderer) LoadString(text string) (*Template, error) {
	set := pongo2.NewSet("prompt-inline", &loader{fsys: r.fsys})
	tpl, err := set.FromString(trimTrailingNewline(text))
	if err != nil {
		return nil, domain.TemplateRenderError("failed to parse inline template", err)
	}
	return &Template{name: "<string>", tpl: tpl}, nil
}

// RenderFile loads and renders the template at path.
func (r *Renderer) RenderFile(path string, ctx Context) (string, error) {
	tpl, err := r.LoadFile(path)
	if err != nil {
		return "", err
	}
	return tpl.Render(ctx)
}

// RenderString loads and renders an inline template.
func (r *Renderer) RenderString(text string, ctx Context) (string, error) {
	tpl, err := r.LoadString(text)
	if err != nil {
		return "", err
	}
	return tpl.Render(ctx)
}

// Render treats sourceOrPath as a file path when isFile is set and as template text otherwise.
func (r *Renderer) Render(sourceOrPath string, ctx Context, isFile bool) (string, error) {
	if isFile {
		return r.RenderFile(sourceOrPath, ctx)
	}
	return r.RenderString(sourceOrPath, ctx)
}

var defaultRenderer = NewRenderer()

// RenderFile renders a template file from the OS filesystem.
func RenderFile(path string, ctx Context) (string, error) {
	return defaultRenderer.RenderFile(path, ctx)
}

// RenderString renders an inline template.
func RenderString(text string, ctx Context) (string, error) {
	return defaultRenderer.RenderString(text, ctx)
}

// Render dispatches on isFile using the OS filesystem.
func Render(sourceOrPath string, ctx Context, isFile bool) (string, error) {
	return defaultRenderer.Render(sourceOrPath, ctx, isFile)
}
