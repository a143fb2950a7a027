package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/praxos/paperscout/internal/arxiv"
	"github.com/praxos/paperscout/internal/config"
	"github.com/praxos/paperscout/internal/llm"
	"github.com/praxos/paperscout/internal/prompts"
	"github.com/praxos/paperscout/internal/research"
	"github.com/praxos/paperscout/internal/tracing"
)

func main() {
	var (
		mode        = flag.String("mode", "reference", "workflow to run: reference or summary")
		format      = flag.String("format", "text", "output format: text or json")
		configPath  = flag.String("config", "", "path to paperscout.yaml (defaults to CONFIG_PATH or the working directory)")
		metricsAddr = flag.String("metrics-addr", "", "optional listen address for /metrics while the workflow runs")
		timeout     = flag.Duration("timeout", 5*time.Minute, "overall deadline for the invocation")
	)
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: paperscout [flags] <query>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *metricsAddr == "" {
		*metricsAddr = cfg.Observability.MetricsAddr
	}

	logger, err := buildLogger(cfg.Observability.Logging)
	if err != nil {
		log.Fatalf("initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := tracing.Initialize(cfg.Observability.Tracing, logger); err != nil {
		logger.Warn("tracing init failed", zap.Error(err))
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	promptSet := prompts.Default()
	if cfg.Workflow.PromptFile != "" {
		promptSet, err = prompts.Load(cfg.Workflow.PromptFile)
		if err != nil {
			logger.Fatal("load prompts", zap.Error(err))
		}
	}

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer cache.Close()
	}

	llmClient := llm.NewHTTPClient(cfg.LLM, logger)
	searcher := arxiv.NewClient(cfg.Lookup, cache, logger)
	refWorkflow := research.NewReferenceWorkflow(llmClient, searcher, promptSet, cfg.Workflow, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "reference":
		outFormat := research.FormatText
		if *format == "json" {
			outFormat = research.FormatStructured
		}
		result, err := refWorkflow.Run(ctx, query, outFormat)
		if err != nil {
			logger.Fatal("reference workflow failed", zap.Error(err))
		}
		printResult(*format, result, result.Text)

	case "summary":
		workflow := research.NewSummaryWorkflow(llmClient, searcher, refWorkflow, promptSet, cfg.Workflow, logger)
		result, err := workflow.Run(ctx, query)
		if err != nil {
			logger.Fatal("summary workflow failed", zap.Error(err))
		}
		printResult(*format, result, result.Text)

	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

func printResult(format string, v interface{}, text string) {
	if format == "json" {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			log.Fatalf("encode result: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	fmt.Println(text)
}
