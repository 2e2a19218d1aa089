package commands

import (
	"fmt"
	"maps"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spherical/groq-vlm/cmd/groq-vlm/ui"
	"github.com/spherical/groq-vlm/internal/config"
	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/prompt"
	"github.com/spherical/groq-vlm/internal/vlm"
)

// promptFlags are shared by the commands that build a prompt.
type promptFlags struct {
	template string
	sets     []string
	perPage  bool
}

// modelFlags override the configured model selection.
type modelFlags struct {
	model  string
	format string
}

// parseSet turns key=value pairs into template variables. Values that look
// like booleans, integers or floats are converted.
func parseSet(pairs []string) (prompt.Context, error) {
	out := make(prompt.Context, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, domain.ValidationError(fmt.Sprintf("invalid --set %q, expected key=value", pair), nil)
		}
		out[key] = parseValue(value)
	}
	return out, nil
}

func parseValue(v string) any {
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if isDecimal(v) {
		if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(f, 0) {
			return f
		}
	}
	return v
}

// isDecimal rejects the inf, nan and hex spellings ParseFloat also accepts.
func isDecimal(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if !strings.ContainsRune("0123456789+-.eE", r) {
			return false
		}
	}
	return true
}

// templateContext merges the configured context with --set overrides.
func templateContext(cfg *config.Config, sets []string) (prompt.Context, error) {
	overrides, err := parseSet(sets)
	if err != nil {
		return nil, err
	}
	ctx := make(prompt.Context, len(cfg.Prompt.Context)+len(overrides))
	maps.Copy(ctx, cfg.Prompt.Context)
	maps.Copy(ctx, overrides)
	return ctx, nil
}

// applyModelFlags writes explicit model flags over the loaded config.
func applyModelFlags(cfg *config.Config, f modelFlags) error {
	if f.model != "" {
		cfg.VLM.Model = f.model
	}
	if f.format != "" {
		format, err := vlm.ParseResponseFormat(f.format)
		if err != nil {
			return err
		}
		cfg.VLM.ResponseFormat = format
	}
	return nil
}

// buildPrompt loads the template and renders it once, or wraps it in a
// per-page prompt when per-page rendering is enabled.
func buildPrompt(cfg *config.Config, pf promptFlags) (vlm.PromptSpec, error) {
	path := cfg.Prompt.TemplatePath
	if pf.template != "" {
		path = pf.template
	}

	ctx, err := templateContext(cfg, pf.sets)
	if err != nil {
		return vlm.PromptSpec{}, err
	}

	tpl, err := prompt.NewRenderer().LoadFile(path)
	if err != nil {
		return vlm.PromptSpec{}, err
	}

	if pf.perPage || cfg.Prompt.PerPage {
		return vlm.TemplatePrompt(tpl, ctx), nil
	}

	text, err := tpl.Render(ctx)
	if err != nil {
		return vlm.PromptSpec{}, err
	}
	return vlm.LiteralPrompt(text), nil
}

// loadCredentials reads the configured provider's API key from the environment.
func loadCredentials(cfg *config.Config) (vlm.Credentials, error) {
	provider := cfg.Provider()
	creds, err := vlm.CredentialsFromEnv(provider, os.LookupEnv)
	if err != nil {
		ui.Error("%s environment variable not set", provider.APIKeyEnv)
		ui.Info("Please set it in your .env file or environment")
		return vlm.Credentials{}, err
	}
	return creds, nil
}

// buildVLMConfig assembles the remote model options for the configured provider.
func buildVLMConfig(cfg *config.Config, creds vlm.Credentials, p vlm.PromptSpec) (*vlm.RemoteModelConfig, error) {
	return vlm.BuildConfig(cfg.Provider(), creds, cfg.VLM.Model, p, cfg.VLM.ResponseFormat)
}
