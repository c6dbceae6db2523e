package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/catalog"
	"github.com/snow-ghost/fusion/pkg/config"
	"github.com/snow-ghost/fusion/pkg/logging"
	"github.com/snow-ghost/fusion/pkg/metrics"
	"github.com/snow-ghost/fusion/pkg/pipeline"
	"github.com/snow-ghost/fusion/pkg/providers"
	"github.com/snow-ghost/fusion/pkg/report"
	"github.com/snow-ghost/fusion/pkg/tracing"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cat, err := loadCatalog(cfg)
	if err != nil {
		logger.Fatal("failed to load worker catalog", zap.Error(err))
	}
	logger.Info("catalog loaded",
		zap.Int("workers", cat.Size()),
		zap.Int("available", cat.AvailableCount()),
	)
	if cat.AvailableCount() == 0 {
		logger.Fatal("no workers have credentials; set the API key variables listed in the catalog or run with LLM_MODE=mock")
	}

	factory := providers.NewFactory()
	if cfg.LLMMode == "mock" {
		mock := providers.NewMockProvider()
		factory = providers.NewMockFactory(mock)
		logger.Warn("running in mock mode, answers are canned")
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.New(registry)
	if addr := os.Getenv("FUSION_METRICS_ADDR"); addr != "" {
		go serveMetrics(addr, registry, logger)
	}

	tracer := tracing.NewNopTracer()
	if cfg.TracingEnabled {
		tracer, err = tracing.NewTracer(tracing.Config{
			ServiceName:    "fusion",
			ServiceVersion: "1.0.0",
			JaegerEndpoint: cfg.JaegerURL,
			Environment:    os.Getenv("ENVIRONMENT"),
		})
		if err != nil {
			logger.Fatal("failed to initialize tracing", zap.Error(err))
		}
	}

	p, err := pipeline.New(pipeline.Options{
		Config:  cfg,
		Catalog: cat,
		Invoker: providers.NewCatalogInvoker(cat, factory),
		Metrics: pipelineMetrics,
		Tracer:  tracer,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.Error(err))
	}

	writer := report.NewWriter(cfg.ReportDir)

	// Single-shot mode: the query is passed as arguments.
	if len(os.Args) > 1 {
		query := strings.Join(os.Args[1:], " ")
		if err := runOnce(context.Background(), p, writer, query, logger); err != nil {
			os.Exit(1)
		}
		return
	}

	repl(p, writer, logger)
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	if cfg.LLMMode == "mock" {
		// Mock mode ignores credentials so every worker stays selectable.
		profiles := cat.Profiles()
		for i := range profiles {
			profiles[i].APIKeyEnv = ""
		}
		cat = catalog.New(profiles)
	}
	return cat, nil
}

func runOnce(ctx context.Context, p *pipeline.Pipeline, writer *report.Writer, query string, logger *zap.Logger) error {
	bundle, err := p.Run(ctx, query)
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return err
	}

	fmt.Println()
	fmt.Println(pipeline.Answer(bundle))
	fmt.Println()
	printSummary(bundle)

	path, err := writer.Write(bundle)
	if err != nil {
		logger.Warn("failed to save report", zap.Error(err))
		return nil
	}
	fmt.Printf("report saved to %s\n", path)
	return nil
}

func repl(p *pipeline.Pipeline, writer *report.Writer, logger *zap.Logger) {
	fmt.Println("fusion: ask a question, or type 'exit' to quit")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}
		runOnce(context.Background(), p, writer, query, logger)
	}
}

func printSummary(bundle *core.Bundle) {
	fmt.Printf("workers: %s (%s selection)\n",
		strings.Join(bundle.Decision.WorkerIDs(), ", "), bundle.Decision.Method)
	for _, rec := range bundle.Scores {
		fmt.Printf("  #%d %-12s %.2f\n", rec.Rank, rec.SubjectID, rec.Final)
	}
	if len(bundle.SkippedStages) > 0 {
		fmt.Printf("skipped stages: %s\n", strings.Join(bundle.SkippedStages, ", "))
	}
	fmt.Printf("duration %s, tokens %d, cost %.6f\n",
		bundle.Duration.Round(time.Millisecond), bundle.TotalUsage.TotalTokens, bundle.TotalCost)
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("metrics listener started", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener failed", zap.Error(err))
	}
}
