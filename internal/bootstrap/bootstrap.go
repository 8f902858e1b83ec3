// Package bootstrap builds the extraction pipeline from configuration.
// The HTTP server and the CLI share it so both run the same stack.
package bootstrap

import (
	"go.uber.org/zap"

	"github.com/your-org/pdfvision/internal/config"
	"github.com/your-org/pdfvision/internal/domain"
	"github.com/your-org/pdfvision/internal/inference"
	"github.com/your-org/pdfvision/internal/renderer"
	"github.com/your-org/pdfvision/internal/textlayer"
	"github.com/your-org/pdfvision/internal/usecases"
)

// Components are the long-lived collaborators of a process
type Components struct {
	Client  *inference.Client
	Usecase *usecases.ExtractionUsecase
}

// Build wires renderer, inference client, text layer extractor and the orchestrator
func Build(cfg *config.Config, logger *zap.Logger) *Components {
	client := inference.NewClient(
		inference.WithBaseURL(cfg.Inference.URL),
		inference.WithModel(cfg.Inference.Model),
		inference.WithTemperature(cfg.Inference.Temperature),
		inference.WithLogger(logger.Named("inference")),
	)

	pageRenderer := renderer.NewFitzRenderer(renderer.Options{
		DPI:     cfg.Extraction.DPI,
		Quality: cfg.Extraction.JPEGQuality,
		Workers: cfg.Extraction.RenderWorkers,
	}, logger.Named("renderer"))

	usecase := usecases.NewExtractionUsecase(
		pageRenderer,
		client,
		textlayer.NewExtractor(logger.Named("textlayer")),
		client,
		logger.Named("extraction"),
		usecases.Options{
			InferenceConcurrency: cfg.Extraction.InferenceConcurrency,
			PageCooldown:         cfg.Extraction.PageCooldown,
			BackoffStep:          cfg.Extraction.BackoffStep,
		},
	)

	logger.Info("extraction pipeline ready",
		zap.String("inference_url", cfg.Inference.URL),
		zap.String("model", client.Model()),
		zap.Int("inference_concurrency", cfg.Extraction.InferenceConcurrency),
		zap.Int("render_workers", cfg.Extraction.RenderWorkers),
	)

	return &Components{Client: client, Usecase: usecase}
}

// Request builds an extraction request from the configured defaults
func Request(cfg *config.Config, mode domain.Mode, processPerPage bool) domain.ExtractionRequest {
	return domain.ExtractionRequest{
		Mode:           mode,
		ProcessPerPage: processPerPage,
		MaxPages:       cfg.Extraction.MaxPages,
		PageTimeout:    cfg.Extraction.PageTimeoutDuration(),
		RetryCount:     cfg.Extraction.RetryCount,
	}
}
