package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/pdfvision/internal/bootstrap"
	"github.com/your-org/pdfvision/internal/config"
	"github.com/your-org/pdfvision/internal/handlers"
	"github.com/your-org/pdfvision/internal/inference"
	"github.com/your-org/pdfvision/internal/middleware"
	"github.com/your-org/pdfvision/internal/usecases"
	"github.com/your-org/pdfvision/pkg/logger"
)

const (
	healthCheckTimeout  = 5 * time.Second
	healthCheckInterval = 30 * time.Second

	// in-flight extractions get this long to finish after a shutdown signal
	shutdownTimeout = 30 * time.Second
)

// App holds the process-wide dependencies and owns their lifecycle
type App struct {
	config  *config.Config
	logger  *zap.Logger
	client  *inference.Client
	usecase *usecases.ExtractionUsecase
	server  *http.Server

	initOnce sync.Once
	initErr  error

	// background jobs stop when ctx is cancelled
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownOnce sync.Once
}

// NewApp creates an app, the real setup happens in Initialize
func NewApp() *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize sets up every component once
func (a *App) Initialize() error {
	a.initOnce.Do(func() {
		a.initErr = a.doInitialize()
	})
	return a.initErr
}

func (a *App) doInitialize() error {
	configPath := os.Getenv("APP_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, found, err := config.LoadOptional(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.config = cfg

	if err := logger.Init(cfg.Log, cfg.Debug); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger.Get()

	if !found {
		a.logger.Info("config file not found, using defaults and environment",
			zap.String("path", configPath),
		)
	}

	a.logger.Info("configuration loaded",
		zap.String("server_host", cfg.Server.Host),
		zap.Int("server_port", cfg.Server.Port),
		zap.String("inference_url", cfg.Inference.URL),
		zap.String("model", cfg.Inference.Model),
		zap.Int("max_pages", cfg.Extraction.MaxPages),
		zap.Int("page_timeout", cfg.Extraction.PageTimeout),
		zap.Int("retry_count", cfg.Extraction.RetryCount),
		zap.Bool("process_per_page", cfg.Extraction.ProcessPerPage),
		zap.String("log_level", cfg.LogLevel()),
	)

	components := bootstrap.Build(cfg, a.logger)
	a.client = components.Client
	a.usecase = components.Usecase

	a.initializeServer()

	a.logger.Info("application initialized")
	return nil
}

// initializeServer sets up routing and middleware
func (a *App) initializeServer() {
	extractHandler := handlers.NewExtractHandler(a.usecase, handlers.Defaults{
		MaxPages:       a.config.Extraction.MaxPages,
		PageTimeout:    a.config.Extraction.PageTimeoutDuration(),
		RetryCount:     a.config.Extraction.RetryCount,
		ProcessPerPage: a.config.Extraction.ProcessPerPage,
		MaxUploadBytes: int64(a.config.Server.MaxUploadMB) << 20,
	}, a.logger.Named("http"))

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware())

	// no logging or limits on the probe
	r.Get("/health", a.healthCheckHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.LoggingMiddleware(a.logger))
		r.Use(middleware.RecoveryMiddleware(a.logger))
		r.Use(middleware.TimeoutMiddleware(a.config.Server.RequestTimeout))
		if rps := a.config.Server.RequestsPerSecond; rps > 0 {
			r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(rps), a.logger))
		}
		r.Use(middleware.ConcurrencyLimitMiddleware(
			middleware.NewConcurrencyLimiter(a.config.Server.MaxConcurrentRequests),
			a.logger,
		))

		r.Get("/", extractHandler.Index)
		r.Post("/extract-text", extractHandler.ExtractText)
	})

	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		// uploads and extractions are bounded by the request timeout instead
		ReadTimeout:  a.config.Server.RequestTimeout,
		WriteTimeout: a.config.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// healthCheckHandler reports whether the inference endpoint answers
func (a *App) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	health := map[string]interface{}{
		"status":              "ok",
		"timestamp":           time.Now().Unix(),
		"model":               a.client.Model(),
		"inference_in_flight": a.usecase.InferenceInFlight(),
		"inference_capacity":  a.usecase.InferenceCapacity(),
	}

	w.Header().Set("Content-Type", "application/json")

	if err := a.client.Ping(ctx); err != nil {
		health["status"] = "unhealthy"
		health["inference"] = "unreachable"
		health["error"] = err.Error()
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(health)
		return
	}
	health["inference"] = "reachable"

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// StartBackgroundJobs starts every background job
func (a *App) StartBackgroundJobs() {
	a.wg.Add(1)
	go a.periodicHealthCheck()
}

// periodicHealthCheck logs the inference endpoint state
func (a *App) periodicHealthCheck() {
	defer a.wg.Done()

	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			a.logger.Info("background health check stopped")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(a.ctx, healthCheckTimeout)
			if err := a.client.Ping(ctx); err != nil {
				a.logger.Warn("inference endpoint unreachable", zap.Error(err))
			} else {
				a.logger.Debug("inference endpoint reachable",
					zap.Int("inference_in_flight", a.usecase.InferenceInFlight()),
				)
			}
			cancel()
		}
	}
}

// Start begins serving requests, it does not block
func (a *App) Start() error {
	if err := a.Initialize(); err != nil {
		return err
	}

	a.StartBackgroundJobs()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (a *App) Shutdown() error {
	var shutdownErr error

	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down")

		a.cancel()

		if a.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := a.server.Shutdown(ctx); err != nil {
				a.logger.Error("failed to stop HTTP server", zap.Error(err))
				shutdownErr = err
			}
			cancel()
		}

		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			a.logger.Info("background jobs finished")
		case <-time.After(shutdownTimeout):
			a.logger.Warn("timed out waiting for background jobs")
		}

		a.logger.Info("application stopped")
		_ = a.logger.Sync()
	})

	return shutdownErr
}

func main() {
	app := NewApp()

	if err := app.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "initialization failed: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "start failed: %v\n", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := app.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown failed: %v\n", err)
		os.Exit(1)
	}
}
