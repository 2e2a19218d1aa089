package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/observability"
	"github.com/spherical/groq-vlm/internal/vlm"
)

// VLMClient executes a remote model configuration for one page image.
type VLMClient interface {
	Complete(ctx context.Context, cfg *vlm.RemoteModelConfig, page *vlm.Page, image []byte) (string, error)
}

// Service orchestrates rasterization and per-page model calls.
type Service struct {
	converter domain.Converter
	client    VLMClient
	opts      PipelineOptions
	logger    *observability.Logger
}

// NewService validates opts and creates a conversion service.
func NewService(converter domain.Converter, client VLMClient, opts PipelineOptions, logger *observability.Logger) (*Service, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if converter == nil || client == nil {
		return nil, domain.ConfigError("converter and VLM client are required", nil)
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{
		converter: converter,
		client:    client,
		opts:      opts,
		logger:    logger.WithComponent("pipeline"),
	}, nil
}

// Convert rasterizes the PDF at path and converts every page.
//
// Events are sent without blocking; they are dropped when eventCh is full.
// A page that fails is recorded on the returned document and does not stop
// the run. When every page fails the document is returned together with an
// extraction error.
func (s *Service) Convert(ctx context.Context, path string, eventCh chan<- domain.StreamEvent) (*Document, error) {
	startTime := time.Now()
	doc := &Document{Source: path, RunID: uuid.New()}
	log := s.logger.With().Str("run_id", doc.RunID.String()).Logger()

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		Payload:   fmt.Sprintf("Starting conversion of %s", path),
		Timestamp: time.Now(),
	})

	renderOpts := s.opts.RenderOptions()
	log.Info().Str("path", path).Float64("scale", renderOpts.Scale).Msg("Rasterizing PDF")

	images, err := s.converter.Convert(ctx, path, renderOpts)
	if err != nil {
		s.emitError(eventCh, 0, err)
		return nil, err
	}

	log.Info().Int("pages", len(images)).Str("model", s.opts.VLM.Model()).Msg("Converting pages")
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventRasterized,
		Payload:   len(images),
		Timestamp: time.Now(),
	})

	doc.Pages = make([]Page, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, image := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			s.emitEvent(eventCh, domain.StreamEvent{
				Type:       domain.EventPageProcessing,
				PageNumber: image.PageNumber,
				Payload:    fmt.Sprintf("Processing page %d", image.PageNumber),
				Timestamp:  time.Now(),
			})

			page := s.convertPage(gctx, image)
			doc.Pages[i] = page

			if page.Err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Error().Int("page", page.Number).Err(page.Err).Msg("Failed to convert page")
				s.emitError(eventCh, page.Number, page.Err)
				return nil
			}

			s.emitEvent(eventCh, domain.StreamEvent{
				Type:       domain.EventPageComplete,
				PageNumber: page.Number,
				Payload:    page.Content,
				Timestamp:  time.Now(),
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.emitError(eventCh, 0, err)
		return nil, err
	}

	doc.Stats = domain.ProcessingStats{
		TotalTime:      time.Since(startTime),
		PagesProcessed: len(doc.Pages),
	}
	for _, p := range doc.Pages {
		if p.OK() {
			doc.Stats.SuccessfulPages++
		} else {
			doc.Stats.FailedPages++
		}
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventComplete,
		Payload:   doc.Stats,
		Timestamp: time.Now(),
	})

	log.Info().
		Int("successful", doc.Stats.SuccessfulPages).
		Int("failed", doc.Stats.FailedPages).
		Dur("duration", doc.Stats.TotalTime).
		Msg("Conversion complete")

	if doc.Stats.FailedPages == len(doc.Pages) {
		return doc, domain.ExtractionError("All pages failed to convert", nil)
	}

	return doc, nil
}

// convertPage sends one rendered page to the model.
func (s *Service) convertPage(ctx context.Context, image domain.PageImage) Page {
	page := Page{
		Number: image.PageNumber,
		Width:  image.Width,
		Height: image.Height,
	}
	if s.opts.GeneratePageImages {
		page.ImagePath = image.ImagePath
	}

	data, err := os.ReadFile(image.ImagePath)
	if err != nil {
		page.Err = domain.IOError(fmt.Sprintf("read page %d image", image.PageNumber), err)
		return page
	}

	content, err := s.client.Complete(ctx, s.opts.VLM, &vlm.Page{
		Number: image.PageNumber,
		Width:  image.Width,
		Height: image.Height,
	}, data)
	if err != nil {
		page.Err = err
		return page
	}

	page.Content = content
	return page
}

// Close removes the rendered page images.
func (s *Service) Close() error {
	return s.converter.Cleanup()
}

// emitEvent safely emits an event to the channel
func (s *Service) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh == nil {
		return
	}
	select {
	case eventCh <- event:
	default:
		s.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping event")
	}
}

// emitError emits an error event
func (s *Service) emitError(eventCh chan<- domain.StreamEvent, pageNumber int, err error) {
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:       domain.EventError,
		PageNumber: pageNumber,
		Payload:    err.Error(),
		Timestamp:  time.Now(),
	})
}
