package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/groq-vlm/cmd/groq-vlm/ui"
	"github.com/spherical/groq-vlm/internal/cache"
	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/llm"
	"github.com/spherical/groq-vlm/internal/pdf"
	"github.com/spherical/groq-vlm/internal/pipeline"
)

type convertResult struct {
	doc *pipeline.Document
	err error
}

func newConvertCmd(a *app) *cobra.Command {
	var (
		pf          promptFlags
		mf          modelFlags
		imagesScale float64
		concurrency int
		output      string
	)

	cmd := &cobra.Command{
		Use:   "convert <pdf>",
		Short: "Convert a PDF to markdown",
		Long: `Convert renders every page of the PDF, sends each page image to the
configured model together with the rendered prompt, and prints the
combined markdown to stdout (or writes it to --output).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			pdfPath := args[0]

			if err := applyModelFlags(cfg, mf); err != nil {
				return err
			}
			if cmd.Flags().Changed("images-scale") {
				cfg.Pipeline.ImagesScale = imagesScale
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Pipeline.Concurrency = concurrency
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			creds, err := loadCredentials(cfg)
			if err != nil {
				return err
			}

			if _, err := os.Stat(pdfPath); err != nil {
				ui.Error("Input document not found: %s", pdfPath)
				return domain.ValidationError(fmt.Sprintf("input document not found: %s", pdfPath), err)
			}

			promptSpec, err := buildPrompt(cfg, pf)
			if err != nil {
				return err
			}

			vlmCfg, err := buildVLMConfig(cfg, creds, promptSpec)
			if err != nil {
				return err
			}

			cacheClient, err := cache.New(cfg.CacheClientConfig())
			if err != nil {
				return domain.ConfigError("Failed to initialize cache", err)
			}
			if cacheClient != nil {
				defer cacheClient.Close()
			}

			client := llm.NewClient(
				llm.WithRetryConfig(cfg.RetryConfig()),
				llm.WithRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst),
				llm.WithCache(cacheClient, cfg.Cache.TTL),
				llm.WithLogger(a.logger),
			)

			svc, err := pipeline.NewService(pdf.NewConverter(a.logger), client, pipeline.PipelineOptions{
				EnableRemoteServices: cfg.Pipeline.EnableRemoteServices,
				ImagesScale:          cfg.Pipeline.ImagesScale,
				GeneratePageImages:   cfg.Pipeline.GeneratePageImages,
				JPEGQuality:          cfg.Pipeline.JPEGQuality,
				Concurrency:          cfg.Pipeline.Concurrency,
				VLM:                  vlmCfg,
			}, a.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			ui.Step("Converting %s with %s", pdfPath, vlmCfg.Model())
			if ui.Verbose() {
				ui.Info("Cache driver %s, concurrency %d, images scale %.2f",
					cfg.Cache.Driver, cfg.Pipeline.Concurrency, cfg.Pipeline.ImagesScale)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			doc, err := runConversion(ctx, svc, pdfPath)
			if doc != nil {
				for _, p := range doc.Failed() {
					ui.Warning("Page %d failed: %v", p.Number, p.Err)
				}
			}
			if err != nil {
				ui.Error("Conversion failed: %v", err)
				return err
			}

			if err := writeMarkdown(cmd, output, doc.ExportToMarkdown()); err != nil {
				return err
			}

			ui.Success("Converted %d/%d pages in %s",
				doc.Stats.SuccessfulPages, doc.Stats.PagesProcessed, doc.Stats.TotalTime.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&pf.template, "template", "t", "", "prompt template path (default: prompt.template_path)")
	cmd.Flags().StringArrayVar(&pf.sets, "set", nil, "template variable override as key=value (repeatable)")
	cmd.Flags().BoolVar(&pf.perPage, "per-page", false, "render the template per page with page_number, page_width and page_height")
	cmd.Flags().StringVarP(&mf.model, "model", "m", "", "model identifier")
	cmd.Flags().StringVarP(&mf.format, "format", "f", "", "response format: markdown, plaintext or json")
	cmd.Flags().Float64Var(&imagesScale, "images-scale", 0, "page render scale relative to 72 DPI")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "pages converted in parallel")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write markdown to this file instead of stdout")

	return cmd
}

// runConversion drives the pipeline while rendering progress from its events.
func runConversion(ctx context.Context, svc *pipeline.Service, pdfPath string) (*pipeline.Document, error) {
	events := make(chan domain.StreamEvent, 100)
	done := make(chan convertResult, 1)

	go func() {
		doc, err := svc.Convert(ctx, pdfPath, events)
		close(events)
		done <- convertResult{doc: doc, err: err}
	}()

	spin := ui.NewSpinner(ui.Out, "Opening document")
	spin.Start()
	spinning := true
	var bar *ui.ProgressBar

	for event := range events {
		switch event.Type {
		case domain.EventStart:
			spin.UpdateMessage(fmt.Sprintf("Rendering %s", pdfPath))

		case domain.EventRasterized:
			if spinning {
				spin.Stop()
				spinning = false
			}
			if total, ok := event.Payload.(int); ok {
				bar = ui.NewProgressBar(ui.Out, total, "Converting")
			}

		case domain.EventPageComplete:
			bar.Add(1)

		case domain.EventError:
			if event.PageNumber > 0 {
				bar.Add(1)
			}

		case domain.EventComplete:
			bar.Finish()
		}
	}
	if spinning {
		spin.Stop()
	}

	res := <-done
	return res.doc, res.err
}

func writeMarkdown(cmd *cobra.Command, output, markdown string) error {
	if output == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), markdown)
		return err
	}
	if err := os.WriteFile(output, []byte(markdown+"\n"), 0o644); err != nil {
		return domain.IOError(fmt.Sprintf("write %s", output), err)
	}
	ui.Success("Markdown written to %s", output)
	return nil
}
