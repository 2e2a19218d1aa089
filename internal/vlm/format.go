package vlm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spherical/groq-vlm/internal/domain"
)

// ResponseFormat tells the executor how to interpret the model's reply.
type ResponseFormat string

const (
	FormatPlainText ResponseFormat = "plaintext"
	FormatMarkdown  ResponseFormat = "markdown"
	FormatJSON      ResponseFormat = "json"
)

// Resolve maps the zero value to markdown.
func (f ResponseFormat) Resolve() ResponseFormat {
	if f == "" {
		return FormatMarkdown
	}
	return f
}

func (f ResponseFormat) String() string {
	return string(f.Resolve())
}

// Valid reports whether f names a supported format.
func (f ResponseFormat) Valid() bool {
	switch f.Resolve() {
	case FormatPlainText, FormatMarkdown, FormatJSON:
		return true
	default:
		return false
	}
}

// ParseResponseFormat parses a format name case-insensitively.
func ParseResponseFormat(s string) (ResponseFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "plaintext", "text", "plain":
		return FormatPlainText, nil
	case "json", "structured":
		return FormatJSON, nil
	default:
		return "", domain.ValidationError(fmt.Sprintf("unknown response format %q", s), nil)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f ResponseFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *ResponseFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseResponseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Decode post-processes raw model content according to the format.
func (f ResponseFormat) Decode(content string) (string, error) {
	switch f.Resolve() {
	case FormatPlainText:
		return strings.TrimSpace(content), nil
	case FormatMarkdown:
		return stripFence(content, "markdown", "md"), nil
	case FormatJSON:
		body := stripFence(content, "json")
		if !json.Valid([]byte(body)) {
			return "", domain.ExtractionError("model response is not valid JSON", nil)
		}
		return body, nil
	default:
		return "", domain.ValidationError(fmt.Sprintf("unknown response format %q", string(f)), nil)
	}
}

// stripFence removes one code fence wrapping the whole content, if present.
// Content holding further fences is several blocks, not one wrapper, and is
// returned as is.
func stripFence(content string, tags ...string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}

	inner := s[3 : len(s)-3]
	nl := strings.IndexByte(inner, '\n')
	if nl < 0 {
		return s
	}

	tag := strings.ToLower(strings.TrimSpace(inner[:nl]))
	if tag != "" {
		known := false
		for _, t := range tags {
			if tag == t {
				known = true
				break
			}
		}
		if !known {
			return s
		}
	}

	body := inner[nl+1:]
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			return s
		}
	}
	return strings.TrimSpace(body)
}
