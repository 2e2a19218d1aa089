package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/observability"
)

const (
	maxScale     = 10.0
	largeFileMiB = 100
)

// Validator provides input validation for PDF files and render options
type Validator struct {
	logger *observability.Logger
}

// NewValidator creates a new validator instance
func NewValidator(logger *observability.Logger) *Validator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Validator{logger: logger}
}

// ValidatePDFPath validates that a file path is valid and points to a PDF
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}

	if mib := info.Size() / (1024 * 1024); mib > largeFileMiB {
		v.logger.Warn().
			Str("path", path).
			Int("size_mb", int(mib)).
			Msg("PDF file is very large, processing may take a while")
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}

// ValidateQuality validates the JPEG quality parameter
func (v *Validator) ValidateQuality(quality int) error {
	if quality < 1 || quality > 100 {
		return domain.ValidationError(fmt.Sprintf("quality must be between 1 and 100, got %d", quality), nil)
	}
	return nil
}

// ValidateScale validates the render scale relative to 72 DPI
func (v *Validator) ValidateScale(scale float64) error {
	if scale <= 0 || scale > maxScale {
		return domain.ValidationError(fmt.Sprintf("scale must be in (0, %g], got %g", maxScale, scale), nil)
	}
	return nil
}

// ValidateRenderOptions validates every field of opts
func (v *Validator) ValidateRenderOptions(opts domain.RenderOptions) error {
	if err := v.ValidateScale(opts.Scale); err != nil {
		return err
	}
	return v.ValidateQuality(opts.Quality)
}
