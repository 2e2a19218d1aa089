package vlm

import (
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/groq-vlm/internal/domain"
)

// spyTransport counts round trips so tests can prove no request was made.
type spyTransport struct {
	calls atomic.Int32
}

func (s *spyTransport) RoundTrip(*http.Request) (*http.Response, error) {
	s.calls.Add(1)
	return nil, http.ErrHandlerTimeout
}

func installSpy(t *testing.T) *spyTransport {
	t.Helper()
	spy := &spyTransport{}
	orig := http.DefaultTransport
	http.DefaultTransport = spy
	t.Cleanup(func() { http.DefaultTransport = orig })
	return spy
}

func TestGroqOptions_Scenario(t *testing.T) {
	cfg, err := GroqOptions(Credentials{APIKey: "abc123"}, "llama-x", LiteralPrompt("Describe the page."), FormatMarkdown)
	require.NoError(t, err)

	assert.Equal(t, "https://api.groq.com/openai/v1/chat/completions", cfg.URL)
	assert.Equal(t, map[string]any{"model": "llama-x"}, cfg.Params)
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer abc123",
		"Content-Type":  "application/json",
	}, cfg.Headers)
	text, ok := cfg.Prompt.Literal()
	assert.True(t, ok)
	assert.Equal(t, "Describe the page.", text)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 1.0, cfg.Scale)
	assert.Equal(t, FormatMarkdown, cfg.ResponseFormat)
	assert.Equal(t, "llama-x", cfg.Model())
	assert.NoError(t, cfg.Validate())
}

func TestGroqOptions_BasicProperties(t *testing.T) {
	cfg, err := GroqOptions(Credentials{APIKey: "k"}, "m", LiteralPrompt("p"), FormatMarkdown)
	require.NoError(t, err)

	assert.Equal(t, "Bearer k", cfg.Headers["Authorization"])
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 1.0, cfg.Scale)
	assert.Equal(t, FormatMarkdown, cfg.ResponseFormat)
}

func TestGroqOptions_MissingCredential(t *testing.T) {
	spy := installSpy(t)

	for _, key := range []string{"", "   "} {
		cfg, err := GroqOptions(Credentials{APIKey: key}, "m", LiteralPrompt("p"), FormatMarkdown)

		assert.Nil(t, cfg)
		require.Error(t, err)
		assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
		assert.ErrorIs(t, err, domain.ErrMissingCredential)
		assert.Contains(t, err.Error(), "GROQ_API_KEY")
	}
	assert.Zero(t, spy.calls.Load())
}

func TestBuildConfig_CredentialCheckedFirst(t *testing.T) {
	// Every other input is invalid too; the credential error must win.
	_, err := BuildConfig(Groq, Credentials{}, "", PromptSpec{}, ResponseFormat("xml"))
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestBuildConfig_Validation(t *testing.T) {
	creds := Credentials{APIKey: "k"}

	tests := []struct {
		name   string
		model  string
		prompt PromptSpec
		format ResponseFormat
	}{
		{name: "empty model", model: "", prompt: LiteralPrompt("p"), format: FormatMarkdown},
		{name: "zero prompt", model: "m", prompt: PromptSpec{}, format: FormatMarkdown},
		{name: "nil dynamic prompt", model: "m", prompt: DynamicPrompt(nil), format: FormatMarkdown},
		{name: "unknown format", model: "m", prompt: LiteralPrompt("p"), format: ResponseFormat("xml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildConfig(Groq, creds, tt.model, tt.prompt, tt.format)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
		})
	}
}

func TestBuildConfig_DefaultFormat(t *testing.T) {
	cfg, err := GroqOptions(Credentials{APIKey: "k"}, "m", LiteralPrompt("p"), "")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, cfg.ResponseFormat)
}

func TestBuildConfig_Idempotent(t *testing.T) {
	creds := Credentials{APIKey: "k"}
	a, err := GroqOptions(creds, "m", LiteralPrompt("p"), FormatPlainText)
	require.NoError(t, err)
	b, err := GroqOptions(creds, "m", LiteralPrompt("p"), FormatPlainText)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, a, b)
}

func TestBuildConfig_OpenRouterHeaders(t *testing.T) {
	cfg, err := BuildConfig(OpenRouter, Credentials{APIKey: "or-key"}, "google/gemini-2.5-flash", LiteralPrompt("p"), FormatMarkdown)
	require.NoError(t, err)

	assert.Equal(t, openRouterURL, cfg.URL)
	assert.Equal(t, "Bearer or-key", cfg.Headers["Authorization"])
	assert.Equal(t, "Groq VLM Converter", cfg.Headers["X-Title"])
	assert.NotEmpty(t, cfg.Headers["HTTP-Referer"])
}

func TestCredentialsFromEnv(t *testing.T) {
	env := map[string]string{"GROQ_API_KEY": " secret "}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	creds, err := CredentialsFromEnv(Groq, lookup)
	require.NoError(t, err)
	assert.Equal(t, "secret", creds.APIKey)

	_, err = CredentialsFromEnv(OpenRouter, lookup)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Contains(t, err.Error(), "OPENROUTER_API_KEY")
}

func TestProviderByName(t *testing.T) {
	p, err := ProviderByName("")
	require.NoError(t, err)
	assert.Equal(t, "groq", p.Name)

	p, err = ProviderByName("OpenRouter")
	require.NoError(t, err)
	assert.Equal(t, openRouterURL, p.URL)

	_, err = ProviderByName("bedrock")
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestRemoteModelConfig_CloneAndRedact(t *testing.T) {
	cfg, err := GroqOptions(Credentials{APIKey: "abc123"}, "m", LiteralPrompt("p"), FormatMarkdown)
	require.NoError(t, err)

	clone := cfg.Clone()
	clone.Params["temperature"] = 0.1
	assert.NotContains(t, cfg.Params, "temperature")

	red := cfg.Redacted()
	assert.Equal(t, "Bearer ****", red.Headers["Authorization"])
	assert.Equal(t, "Bearer abc123", cfg.Headers["Authorization"])
}

func TestRemoteModelConfig_Validate(t *testing.T) {
	valid := func() *RemoteModelConfig {
		cfg, err := GroqOptions(Credentials{APIKey: "k"}, "m", LiteralPrompt("p"), FormatMarkdown)
		require.NoError(t, err)
		return cfg
	}

	var nilCfg *RemoteModelConfig
	assert.Error(t, nilCfg.Validate())

	cfg := valid()
	cfg.Headers["Authorization"] = "Bearer "
	assert.ErrorIs(t, cfg.Validate(), domain.ErrMissingCredential)

	cfg = valid()
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.URL = ""
	assert.Error(t, cfg.Validate())
}
