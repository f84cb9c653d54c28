package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"rollbook/internal/config"
	"rollbook/internal/errors"
	"rollbook/internal/infrastructure"
	"rollbook/internal/leave"
	customMiddleware "rollbook/internal/middleware"
	"rollbook/internal/roster"
	"rollbook/internal/services"
	handlers "rollbook/internal/transport/http"
	"rollbook/internal/validation"
	ws "rollbook/internal/websocket"
	"rollbook/pkg/contracts"
)

// AppName is reported in startup logs
const AppName = "Rollbook Attendance Dashboard"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.AttendanceMetrics
	WebSocketHub  *ws.Hub
	DB            *gorm.DB
	Services      *ServiceContainer
	FrontendFS    fs.FS

	sqlDB        *sql.DB
	logCloser    io.Closer
	errorHandler *errors.ErrorHandler
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Attendance *services.AttendanceService
	Leave      *services.LeaveService
	Health     *services.HealthService
}

// NewApplication loads configuration from the environment and builds the
// application. frontendFS may be nil.
func NewApplication(frontendFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	// relative log files live in the logs directory
	if cfg.Logging.FilePath != "" && !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = paths.GetLogPath(filepath.Base(cfg.Logging.FilePath))
	}

	logger, logCloser, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version))

	app, err := New(cfg, paths, logger, frontendFS)
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	app.logCloser = logCloser
	return app, nil
}

// New wires the application from an explicit configuration. Directories in
// paths must already exist.
func New(cfg *config.Config, paths *config.Paths, logger *slog.Logger, frontendFS fs.FS) (*Application, error) {
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry, contracts.Version), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateAttendanceMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		FrontendFS:    frontendFS,
		errorHandler:  errors.NewErrorHandler(logger, false),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	db, err := leave.OpenSQLite(a.Paths.DatabaseFile)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access database handle: %w", err)
	}
	a.DB = db
	a.sqlDB = sqlDB

	hub := ws.NewHub(a.Logger, a.Metrics)
	hub.SetKeepalive(a.Config.WebSocket.PingPeriod, a.Config.WebSocket.PongWait)
	hub.Start()
	a.WebSocketHub = hub

	// a nil *SheetsSource must not end up inside the interface
	var sheets services.SheetsFetcher
	if a.Config.Sheets.Enabled() {
		src, err := roster.NewSheetsSource(context.Background(), roster.SheetsConfig{
			APIKey:          a.Config.Sheets.APIKey,
			CredentialsFile: a.Config.Sheets.CredentialsFile,
		}, a.Logger)
		if err != nil {
			a.Logger.Warn("Google Sheets import disabled",
				slog.String("error", err.Error()))
		} else {
			sheets = src
		}
	}

	files := validation.NewFileValidator(a.Logger, a.Config.Upload.MaxBytes, a.Config.Upload.AllowedExtensions)
	attendance := services.NewAttendanceService(a.Paths, files, sheets, hub, a.Metrics, a.Logger)

	leaveStore := leave.NewService(leave.NewRepository(db), a.Logger)

	a.Services = &ServiceContainer{
		Attendance: attendance,
		Leave:      services.NewLeaveService(leaveStore, attendance, hub, a.Metrics, a.Logger),
		Health:     services.NewHealthService(a.Paths, attendance, sqlDB, hub, a.Logger),
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	// only middleware that leaves the ResponseWriter alone runs before /ws
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	upgrader := ws.NewUpgrader(a.Config.WebSocket, a.allowedOrigins(), a.Logger)
	r.With(customMiddleware.TraceUpgrade(a.OTelProviders.Tracer, a.Logger)).Get("/ws", a.WebSocketHub.ServeWS(upgrader))

	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.errorHandler))

	validationMiddleware := customMiddleware.NewValidationMiddleware(a.Logger, a.errorHandler, 1<<20)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Telemetry(a.OTelProviders.Tracer, a.Metrics))
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(errors.RecoveryMiddleware(a.errorHandler))
		r.Use(customMiddleware.SecureHeaders)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(validationMiddleware.ValidateRequest)

		a.setupAPIRoutes(r, validationMiddleware)

		if a.FrontendFS != nil {
			a.setupFrontend(r)
		}
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, validationMiddleware *customMiddleware.ValidationMiddleware) {
	queryValidator := customMiddleware.NewQueryParamValidator(a.Logger, a.errorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		handlers.NewHealthHandler(a.Services.Health, a.Logger).Register(r)

		attendanceHandler := handlers.NewAttendanceHandler(a.Services.Attendance, validationMiddleware, queryValidator,
			a.Config.Upload.MaxBytes, a.Logger, a.errorHandler)
		r.Mount("/attendance", attendanceHandler.Routes())

		leaveHandler := handlers.NewLeaveHandler(a.Services.Leave, validationMiddleware, queryValidator, a.Logger, a.errorHandler)
		r.Mount("/leave", leaveHandler.Routes())
	})
}

// setupFrontend serves the embedded dashboard. Unknown paths without an
// extension fall back to index.html for client-side routing.
func (a *Application) setupFrontend(r chi.Router) {
	fileServer := http.FileServer(http.FS(a.FrontendFS))

	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		name := strings.TrimPrefix(path.Clean(req.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}

		if _, err := fs.Stat(a.FrontendFS, name); err != nil {
			if path.Ext(name) != "" {
				a.errorHandler.NotFound(w, req)
				return
			}
			a.Logger.DebugContext(req.Context(), "Serving index.html for client route",
				slog.String("path", req.URL.Path))
			http.ServeFileFS(w, req, a.FrontendFS, "index.html")
			return
		}

		fileServer.ServeHTTP(w, req)
	})
}

func (a *Application) allowedOrigins() []string {
	origins := []string{
		fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
		fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
	}
	return append(origins, a.Config.Security.AllowedOrigins...)
}

// getCORSConfig returns the CORS configuration for the API
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedOrigins: a.allowedOrigins(),
		AllowedHeaders: []string{"Accept", "Content-Type", customMiddleware.RequestIDHeader, "X-Requested-With"},
		MaxAge:         5 * time.Minute,
		Logger:         a.Logger,
	}

	a.Logger.Info("CORS configured",
		slog.Any("allowed_origins", cfg.AllowedOrigins))
	return cfg
}

func (a *Application) createServer() {
	srv := a.Config.Server
	a.Server = &http.Server{
		Addr:              srv.Address(),
		Handler:           a.Router,
		ReadTimeout:       srv.ReadTimeout,
		ReadHeaderTimeout: srv.ReadTimeout,
		WriteTimeout:      srv.WriteTimeout,
		IdleTimeout:       srv.IdleTimeout,
		MaxHeaderBytes:    srv.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Start reloads the stored roster and begins serving in the background.
// cancel is invoked if the listener dies, so the caller's wait unblocks.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("address", a.Server.Addr))

	// a stored roster that no longer parses must not keep the dashboard down
	if err := a.Services.Attendance.Load(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Stored roster could not be loaded", slog.String("error", err.Error()))
	}

	for _, w := range a.startupWarnings() {
		a.Logger.WarnContext(ctx, "Startup check", slog.String("warning", w))
	}

	go func() {
		err := a.Server.ListenAndServe()
		if err == http.ErrServerClosed {
			return
		}
		a.Logger.ErrorContext(ctx, "HTTP listener failed", slog.Any("error", err))
		cancel()
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.Bool("roster_loaded", a.Services.Attendance.Loaded()))
	return nil
}

// startupWarnings lists conditions that degrade but do not prevent serving.
func (a *Application) startupWarnings() []string {
	var warnings []string
	checker := validation.NewFileValidator(a.Logger, 0, nil)
	for _, dir := range []string{a.Paths.UploadsDir, a.Paths.ReportsDir, a.Paths.LogsDir} {
		if err := checker.ValidateOutputDirectory(dir); err != nil {
			warnings = append(warnings, err.Error())
		}
	}
	if creds := a.Config.Sheets.CredentialsFile; creds != "" && !config.FileExists(creds) {
		warnings = append(warnings, "sheets credentials file not found: "+creds)
	}
	return warnings
}

// Stop drains in-flight requests for up to the configured shutdown timeout,
// then releases everything else.
func (a *Application) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	a.Logger.InfoContext(ctx, "Shutting down application")
	err := a.Server.Shutdown(ctx)
	a.Close(ctx)
	if err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Close releases the hub, database and telemetry providers without touching
// the HTTP server.
func (a *Application) Close(ctx context.Context) {
	a.WebSocketHub.Stop()

	if a.sqlDB != nil {
		if err := a.sqlDB.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing database", slog.String("error", err.Error()))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
}

// Run serves until SIGINT or SIGTERM, or until the listener fails.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, stop); err != nil {
		return err
	}
	<-ctx.Done()
	a.Logger.Info("Shutdown requested")

	err := a.Stop(context.Background())
	if a.logCloser != nil {
		a.logCloser.Close()
	}
	return err
}
