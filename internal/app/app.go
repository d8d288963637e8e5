package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"contactcli/internal/config"
	"contactcli/internal/dataprocessing"
	apierrors "contactcli/internal/errors"
	"contactcli/internal/exporter"
	"contactcli/internal/files"
	"contactcli/internal/infrastructure"
	customMiddleware "contactcli/internal/middleware"
	"contactcli/internal/services"
	handlers "contactcli/internal/transport/http"
	"contactcli/internal/validation"
	ws "contactcli/internal/websocket"
	"contactcli/pkg/contracts"
)

// resultCleanupInterval is how often expired upload batches are dropped.
const resultCleanupInterval = time.Minute

// Application represents the main application container
type Application struct {
	Config         *config.Config
	Logger         *slog.Logger
	Router         *chi.Mux
	Server         *http.Server
	Registry       *prometheus.Registry
	OTelProviders  *infrastructure.OTelProviders
	ErrorHandler   *apierrors.ErrorHandler
	WebSocketHub   *ws.Hub
	ContactService *services.ContactService
	HealthService  *services.HealthService
}

// NewPipeline builds the cleaning pipeline for cfg with every available
// table writer registered.
func NewPipeline(cfg config.ProcessingConfig) *dataprocessing.Pipeline {
	opts := dataprocessing.DefaultOptions()
	opts.OutputFormat = cfg.OutputFormat
	opts.CaseInsensitiveDomains = cfg.CaseInsensitiveDomains
	opts.RequireKeyColumn = cfg.RequireKeyColumn
	return dataprocessing.NewPipeline(opts, exporter.NewXLSXWriter(), exporter.NewCSVWriter())
}

// New wires every component of the web service. Nothing is started until Run.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, contracts.Version, registry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := services.NewMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	hub := ws.NewHub(logger)
	store := services.NewResultStore(cfg.Results.TTL, cfg.Results.MaxBatches)

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		Registry:      registry,
		OTelProviders: otelProviders,
		ErrorHandler:  apierrors.NewErrorHandler(logger, infrastructure.ParseLogLevel(cfg.Logging.Level) == slog.LevelDebug),
		WebSocketHub:  hub,
		ContactService: services.NewContactService(services.ContactServiceConfig{
			Pipeline:        NewPipeline(cfg.Processing),
			Discovery:       files.NewDiscovery(""),
			Validator:       validation.NewFileValidator(logger),
			Store:           store,
			Metrics:         metrics,
			Tracer:          otelProviders.Tracer,
			Logger:          logger,
			Streams:         hub,
			WorkDir:         cfg.Paths.WorkDir,
			MaxFiles:        cfg.Upload.MaxFiles,
			AllowFolderRuns: cfg.Paths.AllowFolderRuns,
			FolderRoot:      cfg.Paths.FolderRoot,
		}),
		HealthService: services.NewHealthService(contracts.Version, contracts.BuildTime, contracts.GitCommit, store, hub, logger),
	}

	if err := a.setupRouter(); err != nil {
		return nil, err
	}
	a.createServer()
	return a, nil
}

func (a *Application) setupRouter() error {
	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// The log stream needs the raw ResponseWriter for the upgrade, so it sits
	// outside the group that wraps responses.
	r.Handle("/ws/logs", handlers.NewLogStreamHandler(a.WebSocketHub, a.Config.Security.AllowedOrigins, a.Logger))
	r.Handle("/metrics", handlers.NewMetricsHandler(a.Registry, a.Logger))

	httpMetrics, err := customMiddleware.NewHTTPMetrics(a.Registry)
	if err != nil {
		return fmt.Errorf("failed to register HTTP metrics: %w", err)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Tracing(a.OTelProviders.Tracer))
		r.Use(httpMetrics.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.corsConfig()))
		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger, a.ErrorHandler).Handler)
		}

		r.Get("/", handlers.ServeIndex(handlers.PageData{
			Version:      contracts.Version,
			MaxFiles:     a.Config.Upload.MaxFiles,
			OutputFormat: a.Config.Processing.OutputFormat,
		}, a.Logger))

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			handlers.NewHealthHandler(a.HealthService, a.Logger).Register(r)

			contacts := handlers.NewContactHandler(
				a.ContactService,
				customMiddleware.NewValidator(),
				a.Config.Upload.MaxFiles,
				a.Config.Upload.MaxFileBytes,
				a.Logger,
				a.ErrorHandler,
			)
			r.Mount("/contacts", contacts.Routes())
		})
	})

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
	return nil
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", customMiddleware.RequestIDHeader, customMiddleware.LogStreamHeader},
		ExposedHeaders: []string{customMiddleware.RequestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Handler returns the application router.
func (a *Application) Handler() http.Handler {
	return a.Router
}

// Run serves HTTP and runs the background loops until ctx is cancelled or
// one of them fails, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("output_format", a.Config.Processing.OutputFormat),
		slog.Bool("folder_runs", a.Config.Paths.AllowFolderRuns))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.WebSocketHub.Run(gctx)
	})
	g.Go(func() error {
		return a.ContactService.Store().Run(gctx, resultCleanupInterval, a.Logger)
	})
	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	err := g.Wait()
	a.Logger.Info("Application shutdown complete")
	return err
}

func (a *Application) shutdown() error {
	a.Logger.Info("Shutting down application")

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown error: %w", err))
	}
	return errors.Join(errs...)
}
