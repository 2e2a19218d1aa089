// Package groqvlm is the public entry point for converting PDFs to markdown
// with a Groq-hosted vision-language model.
package groqvlm

import (
	"context"
	"os"

	"github.com/spherical/groq-vlm/internal/config"
	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/llm"
	"github.com/spherical/groq-vlm/internal/observability"
	"github.com/spherical/groq-vlm/internal/pdf"
	"github.com/spherical/groq-vlm/internal/pipeline"
	"github.com/spherical/groq-vlm/internal/prompt"
	"github.com/spherical/groq-vlm/internal/vlm"
)

// Re-export option and prompt types for public API
type (
	RemoteModelConfig = vlm.RemoteModelConfig
	ResponseFormat    = vlm.ResponseFormat
	PromptSpec        = vlm.PromptSpec
	PromptFunc        = vlm.PromptFunc
	Page              = vlm.Page
	TemplateContext   = prompt.Context
)

// Re-export conversion types
type (
	PipelineOptions = pipeline.PipelineOptions
	Document        = pipeline.Document
	DocumentPage    = pipeline.Page
	StreamEvent     = domain.StreamEvent
	EventType       = domain.EventType
)

// Response format constants
const (
	FormatPlainText = vlm.FormatPlainText
	FormatMarkdown  = vlm.FormatMarkdown
	FormatJSON      = vlm.FormatJSON
)

// Event type constants
const (
	EventStart          = domain.EventStart
	EventRasterized     = domain.EventRasterized
	EventPageProcessing = domain.EventPageProcessing
	EventPageComplete   = domain.EventPageComplete
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// LiteralPrompt returns a fixed prompt.
func LiteralPrompt(text string) PromptSpec {
	return vlm.LiteralPrompt(text)
}

// DynamicPrompt returns a prompt computed per page.
func DynamicPrompt(fn PromptFunc) PromptSpec {
	return vlm.DynamicPrompt(fn)
}

// RenderPromptTemplate renders a Jinja-style template. When isFile is true
// sourceOrPath names a template file, otherwise it is the template text.
func RenderPromptTemplate(sourceOrPath string, ctx TemplateContext, isFile bool) (string, error) {
	return prompt.Render(sourceOrPath, ctx, isFile)
}

// GroqVLMOptions builds options for a Groq model. It loads ./.env and reads
// GROQ_API_KEY from the environment.
func GroqVLMOptions(model string, p PromptSpec, format ResponseFormat) (*RemoteModelConfig, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	creds, err := vlm.CredentialsFromEnv(vlm.Groq, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	return vlm.GroqOptions(creds, model, p, format)
}

// DefaultPipelineOptions returns the stock pipeline settings for cfg.
func DefaultPipelineOptions(cfg *RemoteModelConfig) PipelineOptions {
	return pipeline.DefaultOptions(cfg)
}

// Client converts PDF documents.
type Client struct {
	service *pipeline.Service
}

// NewClient creates a client that renders pages with go-fitz and sends them
// to the model described by opts.VLM.
func NewClient(opts PipelineOptions, logger *observability.Logger, clientOpts ...llm.Option) (*Client, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	clientOpts = append([]llm.Option{llm.WithLogger(logger)}, clientOpts...)

	service, err := pipeline.NewService(pdf.NewConverter(logger), llm.NewClient(clientOpts...), opts, logger)
	if err != nil {
		return nil, err
	}
	return &Client{service: service}, nil
}

// Convert converts the PDF at path. events may be nil.
func (c *Client) Convert(ctx context.Context, path string, events chan<- StreamEvent) (*Document, error) {
	return c.service.Convert(ctx, path, events)
}

// Close cleans up resources
func (c *Client) Close() error {
	return c.service.Close()
}
