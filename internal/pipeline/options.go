// Package pipeline converts PDF documents by sending each rasterized page to
// a remote vision-language model.
package pipeline

import (
	"fmt"

	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/vlm"
)

// PipelineOptions configures a conversion run.
type PipelineOptions struct {
	// EnableRemoteServices must be set for a remote VLM to be contacted.
	EnableRemoteServices bool
	// ImagesScale multiplies the VLM's own scale to give the render scale.
	ImagesScale float64
	// GeneratePageImages keeps the rendered page paths on the result.
	GeneratePageImages bool
	JPEGQuality        int
	Concurrency        int
	VLM                *vlm.RemoteModelConfig
}

// DefaultOptions returns options for cfg with the stock pipeline settings.
func DefaultOptions(cfg *vlm.RemoteModelConfig) PipelineOptions {
	return PipelineOptions{
		EnableRemoteServices: true,
		ImagesScale:          2.0,
		GeneratePageImages:   true,
		JPEGQuality:          85,
		Concurrency:          1,
		VLM:                  cfg,
	}
}

// Validate checks the options before any page is rendered.
func (o PipelineOptions) Validate() error {
	if o.VLM == nil {
		return domain.ConfigError("VLM options are required", nil)
	}
	if !o.EnableRemoteServices {
		return domain.ConfigError("remote services must be enabled to use a remote VLM", nil)
	}
	if err := o.VLM.Validate(); err != nil {
		return err
	}
	if o.ImagesScale <= 0 {
		return domain.ConfigError(fmt.Sprintf("images scale must be positive, got %g", o.ImagesScale), nil)
	}
	if o.Concurrency < 1 {
		return domain.ConfigError(fmt.Sprintf("concurrency must be at least 1, got %d", o.Concurrency), nil)
	}
	return nil
}

// RenderOptions returns the rasterizer settings for these options.
func (o PipelineOptions) RenderOptions() domain.RenderOptions {
	scale := o.VLM.Scale
	if scale <= 0 {
		scale = vlm.DefaultScale
	}
	return domain.RenderOptions{
		Scale:   o.ImagesScale * scale,
		Quality: o.JPEGQuality,
	}
}
