package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alfredoptarigan/policy-analyzer/internal/config"
	"alfredoptarigan/policy-analyzer/internal/handlers"
	"alfredoptarigan/policy-analyzer/internal/logging"
	"alfredoptarigan/policy-analyzer/internal/metrics"
	"alfredoptarigan/policy-analyzer/internal/repositories"
	"alfredoptarigan/policy-analyzer/internal/resilience"
	"alfredoptarigan/policy-analyzer/internal/services"
)

const (
	serviceName = "policy-analyzer"
	version     = "1.0.0"
)

func main() {
	// Load configuration
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.Log.Level))

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		slog.Warn("config.warning", "detail", w)
	}
	if err != nil {
		fatal("config.invalid", err)
	}
	slog.Info("config.loaded", "env", cfg.Server.Env, "oracle_provider", cfg.Oracle.Provider)

	// Initialize pipeline stages
	lexicons, err := services.LoadLexicons(cfg.Pipeline.LexiconPath)
	if err != nil {
		fatal("lexicons.load_failed", err)
	}
	schema, err := services.NewAnalysisSchema()
	if err != nil {
		fatal("schema.compile_failed", err)
	}

	pdfParser := services.NewPDFParserService(cfg.Pipeline.ScannedTextThreshold)
	prequalifier := services.NewPrequalifier(lexicons, cfg.Pipeline.GeneralThreshold, cfg.Pipeline.LineOfBusinessThreshold)
	formatter := services.NewRequestFormatter(cfg.Pipeline.MinTextLength, cfg.Pipeline.MaxTextLength, cfg.Pipeline.MaxRequestBytes)

	// Initialize oracle
	oracle, err := newOracle(cfg, schema)
	if err != nil {
		fatal("oracle.init_failed", err)
	}
	if err := oracle.Ready(); err != nil {
		slog.Warn("oracle.not_ready", "provider", oracle.Name(), "error", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		MaxAttempts:             cfg.Oracle.MaxAttempts,
		InitialDelay:            cfg.Oracle.RetryDelay,
		MaxDelay:                4 * cfg.Oracle.RetryDelay,
		Multiplier:              2.0,
		BreakerEnabled:          cfg.Resilience.BreakerEnabled,
		BreakerMinRequests:      cfg.Resilience.BreakerMinRequests,
		BreakerFailureRatio:     cfg.Resilience.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.Resilience.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: cfg.Resilience.BreakerHalfOpenMaxCalls,
	})

	pipelineMetrics := metrics.NewPipelineMetrics(serviceName)
	classifier := services.NewPolicyClassifier(
		oracle,
		executor,
		services.NewOracleLimiter(cfg.Oracle.RatePerMinute),
		cfg.Oracle.Timeout,
		pipelineMetrics,
	)

	// Optional audit trail
	var (
		recorder   services.RunRecorder
		runHandler *handlers.RunHandler
	)
	if cfg.Audit.Enabled {
		db, err := config.InitDatabase(cfg)
		if err != nil {
			fatal("audit.database.init_failed", err)
		}
		runRepo := repositories.NewAnalysisRunRepository(db)
		recorder = runRepo
		runHandler = handlers.NewRunHandler(runRepo)
	}

	analyzer := services.NewAnalyzerService(
		pdfParser,
		prequalifier,
		formatter,
		classifier,
		recorder,
		pipelineMetrics,
		cfg.Pipeline.MaxUploadBytes,
	)
	slog.Info("services.initialized", "audit_enabled", cfg.Audit.Enabled)

	// Create Fiber app
	app := handlers.NewApp(handlers.AppConfig{
		Name:    "Policy Analyzer API",
		Version: version,
		// Multipart framing on top of the largest accepted upload.
		BodyLimit:    int(cfg.Pipeline.MaxRequestBytes) + 1024*1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Oracle.Timeout*time.Duration(cfg.Oracle.MaxAttempts) + 30*time.Second,
		AccessLog:    true,
		// Every oracle attempt plus extraction and backoff.
		RequestTimeout: cfg.Oracle.Timeout*time.Duration(cfg.Oracle.MaxAttempts) + 15*time.Second,
	}, handlers.Routes{
		Analyze:        handlers.NewAnalyzeHandler(analyzer, cfg.Pipeline.MaxUploadBytes),
		Runs:           runHandler,
		Metrics:        pipelineMetrics.Handler(),
		OracleProvider: classifier.Provider(),
		OracleReady:    classifier.Ready,
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("server.shutting_down")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			slog.Error("server.shutdown_forced", "error", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	slog.Info("server.starting", "addr", addr)

	if err := app.Listen(addr); err != nil {
		fatal("server.listen_failed", err)
	}
}

func newOracle(cfg *config.Config, schema *services.AnalysisSchema) (services.PolicyOracle, error) {
	switch cfg.Oracle.Provider {
	case config.ProviderRemote:
		return services.NewRemoteOracle(cfg.Oracle, schema, &http.Client{}), nil
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return services.NewGeminiOracle(ctx, cfg.Oracle, schema, services.NewPromptBuilder())
	}
}

func fatal(event string, err error) {
	slog.Error(event, "error", err)
	os.Exit(1)
}
