package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bina-refinery/logbook/internal/api"
	"github.com/bina-refinery/logbook/internal/catalog"
	"github.com/bina-refinery/logbook/internal/config"
	"github.com/bina-refinery/logbook/internal/logging"
	"github.com/bina-refinery/logbook/internal/observe"
	"github.com/bina-refinery/logbook/internal/publish"
	"github.com/bina-refinery/logbook/internal/reading"
	"github.com/bina-refinery/logbook/internal/session"
	"github.com/bina-refinery/logbook/internal/storage"
	"github.com/bina-refinery/logbook/internal/voice"
	"github.com/bina-refinery/logbook/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to RefineryLogbook.config (default: next to the executable)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("refinery-logbook %s (built %s)\n", Version, BuildTime)
		return 0
	}

	if *configPath == "" {
		// Get the executable's directory for config resolution
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			return 1
		}
		*configPath = filepath.Join(filepath.Dir(exePath), "RefineryLogbook.config")
	}

	// Load XML configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration in %s:\n%v\n", *configPath, err)
		return 1
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfg.Advanced.LogLevel, cfg.Advanced.LogFormat, cfg.Advanced.LogFile)
	if err != nil {
		fmt.Printf("Failed to initialise logging: %v\n", err)
		return 1
	}
	defer logRuntime.Close()
	slog.SetDefault(logRuntime.Logger)
	logger := logRuntime.Logger

	// ── Metrics ──────────────────────────────────────────────────────────────
	var (
		metrics         *observe.Metrics
		metricsShutdown func(context.Context) error
	)
	if cfg.Advanced.EnableMetrics {
		mp, shutdown, err := observe.InitProvider()
		if err != nil {
			logger.Error("failed to initialise metrics", "err", err)
			return 1
		}
		metricsShutdown = shutdown
		metrics, err = observe.NewMetrics(mp)
		if err != nil {
			logger.Error("failed to register metrics", "err", err)
			return 1
		}
	}

	// ── Catalog ──────────────────────────────────────────────────────────────
	gate := cfg.GateEnabled()
	catOpts := catalog.Options{Variant: cfg.Variant(), RequireRanges: gate}
	var cat *catalog.Catalog
	if cfg.Logbook.CatalogFile != "" {
		cat, err = catalog.Load(cfg.Logbook.CatalogFile, catOpts)
	} else {
		cat, err = catalog.Builtin(cfg.Variant(), catOpts)
	}
	if err != nil {
		logger.Error("failed to load catalog", "err", err)
		return 1
	}
	logger.Info("catalog loaded", "variant", cat.Variant(), "locations", cat.LocationNames())

	// ── Log store ────────────────────────────────────────────────────────────
	backend, err := storage.ParseBackend(cfg.Storage.Backend)
	if err != nil {
		logger.Error("invalid storage backend", "err", err)
		return 1
	}
	table, err := storage.OpenTable(backend, cfg.LogPath())
	if err != nil {
		logger.Error("failed to open log", "path", cfg.LogPath(), "err", err)
		return 1
	}
	store := storage.NewLogStore(table, storage.SchemaFor(cfg.Variant()),
		storage.WithMetrics(metrics),
		storage.WithLogger(logger.With("component", "store")),
	)
	defer store.Close()
	if err := store.EnsureInitialized(context.Background()); err != nil {
		logger.Error("failed to initialise log", "path", cfg.LogPath(), "err", err)
		return 1
	}

	// ── Sessions ─────────────────────────────────────────────────────────────
	sessionMgr := session.NewManager(cat,
		session.WithMetrics(metrics),
		session.WithLogger(logger.With("component", "session")),
	)

	// ── Voice ────────────────────────────────────────────────────────────────
	capturer, err := buildCapturer(cfg, metrics, logger.With("component", "voice"))
	if err != nil {
		logger.Error("failed to initialise voice input", "err", err)
		return 1
	}

	// ── Publishing ───────────────────────────────────────────────────────────
	svcOpts := []reading.Option{
		reading.WithMetrics(metrics),
		reading.WithLogger(logger.With("component", "reading")),
	}
	if cfg.Publish.Enabled {
		pubCfg := publish.DefaultConfig()
		pubCfg.Broker = cfg.Publish.Broker
		pubCfg.Username = cfg.Publish.Username
		pubCfg.Password = cfg.Publish.Password
		pubCfg.TopicPrefix = cfg.Publish.TopicPrefix
		pubCfg.QoS = byte(cfg.Publish.QoS)
		pubCfg.Retain = cfg.Publish.Retain
		if cfg.Publish.ClientID != "" {
			pubCfg.ClientID = cfg.Publish.ClientID
		}
		publisher := publish.NewMQTTPublisher(pubCfg, logger.With("component", "mqtt"))
		if err := publisher.Connect(); err != nil {
			logger.Warn("mqtt publishing disabled", "err", err)
		} else {
			defer publisher.Close()
			svcOpts = append(svcOpts, reading.WithPublisher(publisher))
		}
	}
	service := reading.NewService(cat, store, gate, svcOpts...)

	// ── HTTP ─────────────────────────────────────────────────────────────────
	e := newEcho(cfg, metrics, logger)

	deps := &api.Dependencies{
		Catalog:  cat,
		Store:    store,
		Sessions: sessionMgr,
		Recorder: service,
		Version:  Version,
	}
	// Assigned only when set so a disabled capturer stays a nil interface.
	if capturer != nil {
		deps.Capturer = capturer
	}
	api.RegisterRoutes(e, api.NewHandlers(deps))

	if cfg.Advanced.EnableMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	// Register the embedded form last so API routes take precedence
	if err := web.RegisterStaticRoutes(e); err != nil {
		logger.Warn("failed to register static routes", "err", err)
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, *configPath, capturer)

	// ── Run ──────────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Background session cleanup
	g.Go(func() error {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				sessionMgr.CleanupOldSessions(cfg.SessionTimeout())
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	exitCode := 0
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		exitCode = 1
	}

	if metricsShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsShutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown error", "err", err)
		}
	}

	logger.Info("goodbye")
	return exitCode
}

// newEcho builds the Echo instance with the middleware chain.
func newEcho(cfg *config.AppConfig, metrics *observe.Metrics, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || path == "/metrics"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				logger.Warn("request", append(attrs, "err", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if metrics != nil {
		e.Use(observe.Middleware(metrics))
	}

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout:      time.Duration(cfg.Server.RequestTimeout) * time.Second,
		Skipper:      api.IsLongRunning,
		ErrorMessage: "Request timeout",
	}))

	// Compression middleware
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/metrics"
		},
	}))

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	return e
}

// buildCapturer wires the configured microphone and transcriber. It returns
// nil when voice input is disabled.
func buildCapturer(cfg *config.AppConfig, metrics *observe.Metrics, logger *slog.Logger) (*voice.Capturer, error) {
	if !cfg.Voice.Enabled {
		logger.Info("voice input disabled; set OPENAI_API_KEY or WHISPER_URL to enable it")
		return nil, nil
	}

	timeout := time.Duration(cfg.Voice.RequestTimeoutSeconds) * time.Second

	var (
		transcriber voice.Transcriber
		err         error
	)
	switch cfg.Voice.Transcriber {
	case "whisper":
		transcriber, err = voice.NewWhisperTranscriber(cfg.Voice.Endpoint, cfg.Voice.Language, cfg.Voice.Model, timeout)
	default:
		transcriber, err = voice.NewOpenAITranscriber(voice.OpenAIConfig{
			APIKey:   cfg.Voice.APIKey,
			BaseURL:  cfg.Voice.Endpoint,
			Model:    cfg.Voice.Model,
			Language: cfg.Voice.Language,
			Timeout:  timeout,
		})
	}
	if err != nil {
		return nil, err
	}

	var mic voice.Microphone
	if cfg.Voice.EnableMicrophone {
		mic = voice.NewPulseMicrophone(cfg.Voice.Device, cfg.Voice.SampleRate)
	}

	vcfg := voice.DefaultConfig()
	vcfg.SampleRate = cfg.Voice.SampleRate
	vcfg.CalibrationDuration = time.Duration(cfg.Voice.CalibrationMs) * time.Millisecond
	vcfg.Timeout = time.Duration(cfg.Voice.TimeoutSeconds) * time.Second
	vcfg.PhraseLimit = time.Duration(cfg.Voice.PhraseLimitSeconds) * time.Second
	vcfg.PauseDuration = time.Duration(cfg.Voice.PauseMs) * time.Millisecond
	if cfg.Voice.EnergyRatio > 0 {
		vcfg.EnergyRatio = cfg.Voice.EnergyRatio
	}
	if cfg.Voice.MinEnergy > 0 {
		vcfg.MinEnergy = cfg.Voice.MinEnergy
	}

	return voice.NewCapturer(mic, transcriber, vcfg,
		voice.WithMetrics(metrics),
		voice.WithLogger(logger),
	), nil
}

func printBanner(cfg *config.AppConfig, configPath string, capturer *voice.Capturer) {
	voiceMode := "disabled"
	if capturer != nil {
		voiceMode = cfg.Voice.Transcriber
		if capturer.HasMicrophone() {
			voiceMode += " + microphone"
		}
	}
	gate := "off"
	if cfg.GateEnabled() {
		gate = "on"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Bina Refinery Operations Logbook                ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Variant:    %-45s║\n", cfg.Logbook.Variant+" (range gate "+gate+")")
	fmt.Printf("║  Voice:      %-45s║\n", voiceMode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Log:       %-46s║\n", cfg.LogPath())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
}
