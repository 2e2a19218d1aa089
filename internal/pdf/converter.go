// Package pdf rasterizes PDF pages into JPEG files using go-fitz.
package pdf

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/observability"
)

// Converter renders PDF pages to temporary JPEG files
type Converter struct {
	mu        sync.Mutex
	validator *Validator
	logger    *observability.Logger
	tempDirs  []string
}

var _ domain.Converter = (*Converter)(nil)

// NewConverter creates a new PDF converter instance
func NewConverter(logger *observability.Logger) *Converter {
	if logger == nil {
		logger = observability.Nop()
	}
	logger = logger.WithComponent("pdf")
	return &Converter{
		validator: NewValidator(logger),
		logger:    logger,
	}
}

// Convert renders every page of the PDF at opts.DPI() and writes it as a JPEG
// of opts.Quality into a fresh temp directory.
func (c *Converter) Convert(ctx context.Context, pdfPath string, opts domain.RenderOptions) ([]domain.PageImage, error) {
	if err := c.validator.ValidatePDFPath(pdfPath); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateRenderOptions(opts); err != nil {
		return nil, err
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, domain.ConversionError("Failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ValidationError("PDF has no pages", nil)
	}

	tempDir, err := os.MkdirTemp("", "groq-vlm-*")
	if err != nil {
		return nil, domain.IOError("Failed to create temp directory", err)
	}
	c.track(tempDir)

	dpi := opts.DPI()
	c.logger.Debug().
		Str("path", pdfPath).
		Int("pages", pageCount).
		Float64("dpi", dpi).
		Msg("Rasterizing PDF")

	images := make([]domain.PageImage, 0, pageCount)

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageNum, dpi)
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("Failed to render page %d", pageNum+1), err)
		}

		outputPath := filepath.Join(tempDir, fmt.Sprintf("page_%03d.jpg", pageNum+1))
		outputFile, err := os.Create(outputPath)
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("Failed to create output file for page %d", pageNum+1), err)
		}

		err = jpeg.Encode(outputFile, img, &jpeg.Options{Quality: opts.Quality})
		outputFile.Close()
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("Failed to encode page %d as JPG", pageNum+1), err)
		}

		bounds := img.Bounds()
		images = append(images, domain.PageImage{
			PageNumber: pageNum + 1,
			ImagePath:  outputPath,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		})
	}

	return images, nil
}

func (c *Converter) track(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tempDirs = append(c.tempDirs, dir)
}

// Cleanup removes every temp directory created by Convert
func (c *Converter) Cleanup() error {
	c.mu.Lock()
	dirs := c.tempDirs
	c.tempDirs = nil
	c.mu.Unlock()

	var errs []error
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}

	return nil
}
