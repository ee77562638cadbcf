package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/triage-visualizer/backend/internal/api"
	"github.com/triage-visualizer/backend/internal/config"
	"github.com/triage-visualizer/backend/internal/layout"
	"github.com/triage-visualizer/backend/internal/log"
	"github.com/triage-visualizer/backend/internal/ruleset"
	"github.com/triage-visualizer/backend/internal/session"
	"github.com/triage-visualizer/backend/internal/storage"
	"github.com/triage-visualizer/backend/internal/upload"
	"github.com/triage-visualizer/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func configPath() (string, error) {
	if p := os.Getenv("TRIAGE_CONFIG"); p != "" {
		return p, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), "config.yaml"), nil
}

func run() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Configure(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Service: "triage-server"})
	logger := log.WithComponent("server")

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fileStore, err := storage.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	uploadMgr := upload.NewManager(fileStore)

	rules := ruleset.NewHolder(nil)
	if cfg.Rules.UserFile != "" {
		if cfg.Rules.Watch {
			watcher := ruleset.NewWatcher(rules, cfg.Rules.UserFile, 0)
			if err := watcher.Start(ctx); err != nil {
				logger.Warn().Err(err).Str(log.FieldPath, cfg.Rules.UserFile).Msg("rule watcher disabled")
			}
			defer watcher.Stop()
		} else if _, err := rules.LoadFile(cfg.Rules.UserFile); err != nil {
			logger.Warn().Err(err).Str(log.FieldPath, cfg.Rules.UserFile).Msg("user rules not loaded")
		}
	}

	runs := session.NewManager(session.ManagerOptions{
		TempDir: cfg.Storage.TempDir,
		MaxRuns: cfg.Index.MaxSessions,
		Rules:   rules,
		Workers: cfg.Index.Workers,
	})
	defer runs.Close()

	go cleanupLoop(ctx, cfg, runs, uploadMgr)

	handlers := api.NewHandlers(&api.Dependencies{
		Store:         fileStore,
		Runs:          runs,
		Uploads:       uploadMgr,
		Rules:         rules,
		Engine:        layout.New(cfg.LayoutEngine()),
		ExportDir:     cfg.Storage.ExportDir,
		ViperFallback: cfg.Index.ViperFallback,
		Version:       Version,
	})
	defer handlers.Companion.Close()

	embeddedMode := web.HasEmbeddedFiles()
	e := newEcho(cfg, embeddedMode)
	api.RegisterRoutes(e, handlers)
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn().Err(err).Msg("failed to register static routes")
		}
	}

	s := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(path, cfg, embeddedMode)
	logger.Info().
		Str("addr", cfg.Addr()).
		Str("version", Version).
		Bool("embedded", embeddedMode).
		Msg("server starting")

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	handlers.Companion.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func cleanupLoop(ctx context.Context, cfg *config.Config, runs *session.Manager, uploads *upload.Manager) {
	interval := time.Duration(cfg.Index.CleanupMins) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	maxAge := time.Duration(cfg.Index.RunTimeoutMins) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runs.CleanupOldRuns(maxAge)
			uploads.CleanupOldJobs(maxAge)
		}
	}
}

// isStreaming reports requests that stay open: SSE progress streams and
// the companion WebSocket.
func isStreaming(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasSuffix(path, "/stream") ||
		path == "/api/ws" ||
		c.Request().Header.Get(echo.HeaderAccept) == "text/event-stream"
}

func newEcho(cfg *config.Config, embeddedMode bool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e)

	httpLog := log.WithComponent("http")
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Server.RequestLog {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/keepalive") || path == "/api/health" || path == "/metrics"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := httpLog.Info()
			if v.Error != nil {
				ev = httpLog.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur(log.FieldDuration, v.Latency).
				Str(log.FieldRemoteIP, v.RemoteIP).
				Msg("request")
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			return isStreaming(c) || strings.Contains(c.Request().URL.Path, "/upload")
		},
		ErrorMessage: "Request timeout - query took too long",
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: isStreaming,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := []string{
			"http://localhost:5173", "http://127.0.0.1:5173",
			"http://localhost:3000", "http://127.0.0.1:3000",
		}
		if embeddedMode {
			origins = origins[:0]
			for _, o := range strings.Split(cfg.Server.AllowOrigins, ",") {
				if o = strings.TrimSpace(o); o != "" {
					origins = append(origins, o)
				}
			}
			if len(origins) == 0 {
				origins = []string{"*"}
			}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
	return e
}

func printBanner(configPath string, cfg *config.Config, embeddedMode bool) {
	mode := "Development"
	if embeddedMode {
		mode = "Embedded frontend"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Log Triage Visualizer Server                    ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.Addr())
	fmt.Printf("║  Uploads:   %-46s║\n", cfg.Storage.UploadDir)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}
}
