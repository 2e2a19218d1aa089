// Package vlm builds option objects describing how to call a remote
// vision-language model over an OpenAI-compatible chat-completions API.
//
// Building options performs no I/O. The returned RemoteModelConfig is inert
// data that a pipeline executes later.
package vlm

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/spherical/groq-vlm/internal/domain"
)

const (
	DefaultTimeout = 90 * time.Second
	DefaultScale   = 1.0

	groqURL       = "https://api.groq.com/openai/v1/chat/completions"
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"
)

// Provider describes a chat-completions endpoint and where its key comes from.
type Provider struct {
	Name         string
	URL          string
	APIKeyEnv    string
	ExtraHeaders map[string]string
}

var (
	// Groq is the Groq OpenAI-compatible endpoint.
	Groq = Provider{
		Name:      "groq",
		URL:       groqURL,
		APIKeyEnv: "GROQ_API_KEY",
	}

	// OpenRouter is the OpenRouter endpoint.
	OpenRouter = Provider{
		Name:      "openrouter",
		URL:       openRouterURL,
		APIKeyEnv: "OPENROUTER_API_KEY",
		ExtraHeaders: map[string]string{
			"HTTP-Referer": "https://github.com/spherical/groq-vlm",
			"X-Title":      "Groq VLM Converter",
		},
	}
)

// ProviderByName looks up a known provider.
func ProviderByName(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Groq.Name:
		return Groq, nil
	case OpenRouter.Name:
		return OpenRouter, nil
	default:
		return Provider{}, domain.ConfigError(fmt.Sprintf("unknown VLM provider %q", name), nil)
	}
}

// Credentials carries the API key used to authorize requests.
type Credentials struct {
	APIKey string
}

// CredentialsFromEnv reads the provider's key through lookup, typically os.LookupEnv.
func CredentialsFromEnv(p Provider, lookup func(string) (string, bool)) (Credentials, error) {
	key, _ := lookup(p.APIKeyEnv)
	key = strings.TrimSpace(key)
	if key == "" {
		return Credentials{}, domain.ConfigError(fmt.Sprintf("%s environment variable not set", p.APIKeyEnv), domain.ErrMissingCredential)
	}
	return Credentials{APIKey: key}, nil
}

// RemoteModelConfig fully describes one remote model invocation.
type RemoteModelConfig struct {
	URL            string            `json:"url"`
	Params         map[string]any    `json:"params"`
	Headers        map[string]string `json:"headers"`
	Prompt         PromptSpec        `json:"-"`
	Timeout        time.Duration     `json:"timeout"`
	Scale          float64           `json:"scale"`
	ResponseFormat ResponseFormat    `json:"response_format"`
}

// Model returns the model identifier from Params.
func (c *RemoteModelConfig) Model() string {
	m, _ := c.Params["model"].(string)
	return m
}

// Validate checks the invariants a pipeline relies on before executing c.
func (c *RemoteModelConfig) Validate() error {
	if c == nil {
		return domain.ConfigError("remote model config is required", nil)
	}
	if c.URL == "" {
		return domain.ConfigError("remote model URL is required", nil)
	}
	auth := c.Headers["Authorization"]
	if strings.TrimSpace(strings.TrimPrefix(auth, "Bearer")) == "" {
		return domain.ConfigError("authorization header is empty", domain.ErrMissingCredential)
	}
	if c.Timeout <= 0 {
		return domain.ConfigError("timeout must be positive", nil)
	}
	if !c.ResponseFormat.Valid() {
		return domain.ConfigError(fmt.Sprintf("unknown response format %q", string(c.ResponseFormat)), nil)
	}
	return c.Prompt.Validate()
}

// Clone returns a copy whose maps can be modified independently.
func (c *RemoteModelConfig) Clone() *RemoteModelConfig {
	out := *c
	out.Params = maps.Clone(c.Params)
	out.Headers = maps.Clone(c.Headers)
	return &out
}

// Redacted returns a clone with the bearer token masked, for display.
func (c *RemoteModelConfig) Redacted() *RemoteModelConfig {
	out := c.Clone()
	if _, ok := out.Headers["Authorization"]; ok {
		out.Headers["Authorization"] = "Bearer ****"
	}
	return out
}

// BuildConfig assembles the options for calling provider with model and prompt.
// A missing credential fails before anything else is checked.
func BuildConfig(p Provider, creds Credentials, model string, prompt PromptSpec, format ResponseFormat) (*RemoteModelConfig, error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return nil, domain.ConfigError(fmt.Sprintf("%s environment variable not set", p.APIKeyEnv), domain.ErrMissingCredential)
	}
	if strings.TrimSpace(model) == "" {
		return nil, domain.ValidationError("model is required", nil)
	}
	if err := prompt.Validate(); err != nil {
		return nil, err
	}
	format = format.Resolve()
	if !format.Valid() {
		return nil, domain.ValidationError(fmt.Sprintf("unknown response format %q", string(format)), nil)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + creds.APIKey,
		"Content-Type":  "application/json",
	}
	for k, v := range p.ExtraHeaders {
		headers[k] = v
	}

	return &RemoteModelConfig{
		URL: p.URL,
		Params: map[string]any{
			"model": model,
		},
		Headers:        headers,
		Prompt:         prompt,
		Timeout:        DefaultTimeout,
		Scale:          DefaultScale,
		ResponseFormat: format,
	}, nil
}

// GroqOptions builds options for the Groq chat-completions endpoint.
func GroqOptions(creds Credentials, model string, prompt PromptSpec, format ResponseFormat) (*RemoteModelConfig, error) {
	return BuildConfig(Groq, creds, model, prompt, format)
}
