package vlm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/prompt"
)

func TestPromptSpec_Literal(t *testing.T) {
	p := LiteralPrompt("Convert this page to markdown.")

	assert.False(t, p.IsDynamic())
	text, err := p.Resolve(&Page{Number: 4})
	require.NoError(t, err)
	assert.Equal(t, "Convert this page to markdown.", text)
}

func TestPromptSpec_Dynamic(t *testing.T) {
	p := DynamicPrompt(func(page *Page) (string, error) {
		if page == nil {
			return "no page", nil
		}
		if page.Number > 10 {
			return "", errors.New("too many pages")
		}
		return "page " + string(rune('0'+page.Number)), nil
	})

	assert.True(t, p.IsDynamic())
	_, ok := p.Literal()
	assert.False(t, ok)

	text, err := p.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "no page", text)

	text, err = p.Resolve(&Page{Number: 2})
	require.NoError(t, err)
	assert.Equal(t, "page 2", text)

	_, err = p.Resolve(&Page{Number: 11})
	assert.EqualError(t, err, "too many pages")
}

func TestPromptSpec_Zero(t *testing.T) {
	var p PromptSpec

	assert.True(t, domain.IsType(p.Validate(), domain.ErrorTypeValidation))
	_, err := p.Resolve(nil)
	assert.Error(t, err)
}

func TestTemplatePrompt(t *testing.T) {
	tpl, err := prompt.NewRenderer().LoadString(
		"{% if include_page_number %}Page {{ page_number }} ({{ page_width }}x{{ page_height }}). {% endif %}Summarize: {{ summarize_visuals }}",
	)
	require.NoError(t, err)

	base := prompt.Context{"summarize_visuals": true, "include_page_number": true}
	p := TemplatePrompt(tpl, base)

	// Mutating the caller's map afterwards must not affect the prompt.
	base["summarize_visuals"] = false

	text, err := p.Resolve(&Page{Number: 2, Width: 1224, Height: 1584})
	require.NoError(t, err)
	assert.Equal(t, "Page 2 (1224x1584). Summarize: True", text)

	text, err = p.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "Page  (x). Summarize: True", text)
}
