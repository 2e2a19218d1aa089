package domain

import "context"

// Converter defines the interface for converting PDF to images
type Converter interface {
	// Convert turns a PDF into a slice of page images
	Convert(ctx context.Context, pdfPath string, opts RenderOptions) ([]PageImage, error)

	// Cleanup removes temporary files created during conversion
	Cleanup() error
}
